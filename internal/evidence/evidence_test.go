package evidence

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfit/campusfit-go/internal/errors"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "", maxSize)
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1736503200000) }
	return s
}

func TestUpload(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	ref, err := s.Upload(strings.NewReader("jpeg bytes"), "photo one.jpg", "permits")
	require.NoError(t, err)
	assert.Equal(t, "/permits/photo_one_1736503200000.jpg", ref)

	data, err := os.ReadFile(filepath.Join(s.Root(), "permits", "photo_one_1736503200000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	f, err := s.Open(ref)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(got))
}

func TestUpload_DefaultFolderAndNestedFolder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	ref, err := s.Upload(strings.NewReader("x"), `C:\Users\me\scan.png`, "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/scan_1736503200000.png", ref)

	ref, err = s.Upload(strings.NewReader("x"), "scan.png", "concerns/2025/")
	require.NoError(t, err)
	assert.Equal(t, "/concerns/2025/scan_1736503200000.png", ref)
}

func TestUpload_RejectsTraversal(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)

	for _, folder := range []string{"../outside", "/etc", "a/../../b", `..\win`} {
		_, err := s.Upload(strings.NewReader("x"), "f.jpg", folder)
		require.Error(t, err, folder)
		assert.ErrorIs(t, err, ErrInvalidPath, folder)
		assert.True(t, errors.IsValidation(err), folder)
	}

	_, err := s.Open("/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUpload_SizeLimits(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 4)

	_, err := s.Upload(strings.NewReader("12345"), "big.jpg", "uploads")
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = s.Upload(strings.NewReader(""), "empty.jpg", "uploads")
	require.ErrorIs(t, err, ErrEmptyFile)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "uploads"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Upload(strings.NewReader("1234"), "ok.jpg", "uploads")
	require.NoError(t, err)
}

func TestUpload_RejectsNamelessFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)
	_, err := s.Upload(strings.NewReader("x"), "???.jpg", "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 0)
	_, err := s.Open("/uploads/none.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
