package location

import (
	"fmt"
	"path/filepath"
	"strings"

	"tierwatch/internal/services"
)

// Accessor maps resource identifiers to absolute paths under a mount prefix.
type Accessor struct {
	Prefix string
}

// FilesystemPath joins identifier (using "/" or the OS separator) onto the
// prefix. Identifiers that are absolute or climb above the prefix are rejected.
func (a Accessor) FilesystemPath(identifier string) (string, error) {
	if strings.TrimSpace(a.Prefix) == "" {
		return "", services.Wrap(services.ErrConfiguration, "location", "accessor", "prefix is empty", nil)
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", services.Wrap(services.ErrValidation, "location", "accessor", "resource identifier is empty", nil)
	}
	rel := filepath.FromSlash(identifier)
	if filepath.IsAbs(rel) {
		return "", services.Wrap(services.ErrValidation, "location", "accessor",
			fmt.Sprintf("resource identifier %q is absolute", identifier), nil)
	}
	prefix := filepath.Clean(a.Prefix)
	full := filepath.Join(prefix, rel)
	within, err := filepath.Rel(prefix, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrValidation, "location", "accessor",
			fmt.Sprintf("resource identifier %q escapes %s", identifier, prefix), nil)
	}
	return full, nil
}
