// Package evidence stores uploaded evidence files (violation photos, permit
// scans) under a configured root and hands back a root-relative reference.
package evidence

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

const (
	defaultFolder  = "uploads"
	defaultMaxSize = 10 << 20
	dirPerm        = 0o755
	filePerm       = 0o644
)

// Sentinel errors
var (
	ErrInvalidPath  = errors.NewStd("invalid evidence path")
	ErrFileTooLarge = errors.NewStd("evidence file too large")
	ErrEmptyFile    = errors.NewStd("evidence file is empty")
)

// GetLogger returns the module logger for evidence storage
func GetLogger() logger.Logger {
	return logger.Global().Module("evidence")
}

// Store writes evidence files below a root directory.
type Store struct {
	root          string
	defaultFolder string
	maxSize       int64
	now           func() time.Time
}

// New creates a Store rooted at root, creating the directory if needed.
// A maxSize of zero selects the default limit.
func New(root, folder string, maxSize int64) (*Store, error) {
	if root == "" {
		return nil, errors.Newf("evidence root directory is not configured").
			Component("evidence").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, errors.New(err).
			Component("evidence").
			Category(errors.CategoryFileIO).
			Context("root", root).
			Build()
	}
	if folder == "" {
		folder = defaultFolder
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Store{root: root, defaultFolder: folder, maxSize: maxSize, now: time.Now}, nil
}

// NewFromSettings creates a Store from evidence settings.
func NewFromSettings(s conf.EvidenceSettings) (*Store, error) {
	return New(s.Path, s.DefaultFolder, int64(s.MaxSizeMB)<<20)
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// Upload copies r into folder and returns "/<folder>/<base>_<unixMillis><ext>".
// folder must be relative and stay inside the root; an empty folder selects
// the default one. Partially written files are removed on failure.
func (s *Store) Upload(r io.Reader, filename, folder string) (string, error) {
	if folder == "" {
		folder = s.defaultFolder
	}
	cleanFolder, err := cleanRelative(folder)
	if err != nil {
		return "", err
	}
	name, err := storedName(filename, s.now())
	if err != nil {
		return "", err
	}

	root, err := os.OpenRoot(s.root)
	if err != nil {
		return "", s.ioError(err, "open_root", folder)
	}
	defer root.Close()

	if err := root.MkdirAll(filepath.FromSlash(cleanFolder), dirPerm); err != nil {
		return "", s.ioError(err, "mkdir", folder)
	}
	rel := filepath.Join(filepath.FromSlash(cleanFolder), name)
	f, err := root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return "", s.ioError(err, "create", folder)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = s.ioError(copyErr, "write", folder)
	case closeErr != nil:
		err = s.ioError(closeErr, "close", folder)
	case n > s.maxSize:
		err = errors.New(ErrFileTooLarge).
			Component("evidence").
			Category(errors.CategoryValidation).
			Context("max_bytes", s.maxSize).
			Build()
	case n == 0:
		err = errors.New(ErrEmptyFile).
			Component("evidence").
			Category(errors.CategoryValidation).
			Build()
	}
	if err != nil {
		_ = root.Remove(rel)
		return "", err
	}

	ref := "/" + path.Join(cleanFolder, name)
	GetLogger().Debug("evidence stored",
		logger.String("ref", ref),
		logger.Int64("bytes", n))
	return ref, nil
}

// Open opens a stored file by the reference Upload returned.
func (s *Store) Open(ref string) (*os.File, error) {
	rel, err := cleanRelative(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, s.ioError(err, "open_root", ref)
	}
	defer root.Close()

	f, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(err).
				Component("evidence").
				Category(errors.CategoryNotFound).
				Context("ref", ref).
				Build()
		}
		return nil, s.ioError(err, "open", ref)
	}
	return f, nil
}

func (s *Store) ioError(err error, op, target string) error {
	return errors.New(err).
		Component("evidence").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("target", target).
		Build()
}

// cleanRelative normalizes p to a slash-separated relative path that does
// not leave its base.
func cleanRelative(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	cleaned := path.Clean(p)
	if path.IsAbs(p) || filepath.IsAbs(p) || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", errors.New(ErrInvalidPath).
			Component("evidence").
			Category(errors.CategoryValidation).
			Context("path", p).
			Build()
	}
	return cleaned, nil
}

// storedName turns a client filename into "<base>_<unixMillis><ext>".
func storedName(filename string, now time.Time) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := path.Ext(base)
	stem := sanitize(strings.TrimSuffix(base, ext))
	if stem == "" {
		return "", errors.New(ErrInvalidPath).
			Component("evidence").
			Category(errors.CategoryValidation).
			Context("filename", filename).
			Build()
	}
	return stem + "_" + strconv.FormatInt(now.UnixMilli(), 10) + sanitize(ext), nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, s)
}
