// Package buildinfo carries build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

const unknown = "unknown"

// Context contains build metadata that is not user-configurable.
type Context struct {
	Version   string // git tag or commit
	BuildDate string
}

// GetVersion returns the version, or "unknown" when not set.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown" when not set.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// String formats the metadata for --version output.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}

// UserAgent returns the User-Agent used for outbound HTTP requests.
func (c *Context) UserAgent() string {
	return "campusfit/" + c.GetVersion()
}
