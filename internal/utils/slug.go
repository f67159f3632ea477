package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptySlug = errors.New("name produces an empty slug")
	// ErrSlugLooksLikeID is returned for slugs that parse as a UUID, since
	// board references accept either an ID or a slug.
	ErrSlugLooksLikeID = errors.New("name produces a slug that looks like an ID")
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slugInvalid   = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify lower-cases name, turns whitespace runs into a single '-' and drops
// everything outside [a-z0-9-]. UUID-shaped results are rejected.
func Slugify(name string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	if s == "" || strings.Trim(s, "-") == "" {
		return "", ErrEmptySlug
	}
	if IsID(s) {
		return "", ErrSlugLooksLikeID
	}
	return s, nil
}

// IsID reports whether ref is a record ID rather than a slug.
func IsID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}
