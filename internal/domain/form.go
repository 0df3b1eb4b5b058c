package domain

import (
	"fmt"
	"regexp"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// FormConfig is a bookable form as the host persists it: metadata plus the
// nested service tree and the global base questions.
type FormConfig struct {
	ID            string     `json:"id"`
	InternalName  string     `json:"internalName"`
	Slug          string     `json:"slug"`
	ServiceTree   *Node      `json:"serviceTree"`
	BaseQuestions []Question `json:"baseQuestions"`
	Theme         Theme      `json:"theme,omitempty"`
	PrimaryColor  string     `json:"primaryColor,omitempty"`
	IsEnabled     bool       `json:"isEnabled"`
	Version       int        `json:"version"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Metadata is the form-level data carried alongside a normalized document.
type Metadata struct {
	ID           string
	Name         string
	Slug         string
	Theme        Theme
	PrimaryColor string
}

// Metadata extracts the form-level fields.
func (f *FormConfig) Metadata() Metadata {
	return Metadata{
		ID:           f.ID,
		Name:         f.InternalName,
		Slug:         f.Slug,
		Theme:        f.Theme,
		PrimaryColor: f.PrimaryColor,
	}
}

// ValidateSlugFormat performs the cheap character-class check used when a
// slug is typed on the command line. Full slug rules live in the validation
// package.
func ValidateSlugFormat(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required (use --slug flag)")
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug %q may only contain lowercase letters, digits and hyphens", slug)
	}
	return nil
}

// DisplayID returns the best short identifier for display.
// It prefers the slug; if empty it truncates ID to 8 characters.
func (f *FormConfig) DisplayID() string {
	if f.Slug != "" {
		return f.Slug
	}
	if len(f.ID) >= 8 {
		return f.ID[:8]
	}
	return f.ID
}
