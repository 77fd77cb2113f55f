package location

import (
	"tierwatch/internal/config"
	"tierwatch/internal/textutil"
)

// Structure is the path convention of a location.
type Structure struct {
	Separator  string
	Substitute string
	Lowercase  bool
}

// StructureFromConfig builds the structure from the [storage] section.
func StructureFromConfig(cfg config.Storage) Structure {
	return Structure{
		Separator:  cfg.Separator,
		Substitute: cfg.IllegalSubstitute,
		Lowercase:  cfg.LowercaseSegments,
	}
}

// PathSeparator returns the logical path separator, defaulting to "/".
func (s Structure) PathSeparator() string {
	if s.Separator == "" {
		return "/"
	}
	return s.Separator
}

// Sanitize makes segment safe for use as one path component.
func (s Structure) Sanitize(segment string) string {
	sub := s.Substitute
	if sub == "" {
		sub = textutil.DefaultSubstitute
	}
	return textutil.SanitizeSegment(segment, sub, s.Lowercase)
}
