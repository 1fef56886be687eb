package common

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify converts a workspace name into its canonical slug. Uniqueness of
// workspace names is enforced on the slug, so "My Team" and "my-team"
// collide by design.
func Slugify(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	slug := strings.Trim(nonSlugChars.ReplaceAllString(lower, "-"), "-")
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}
