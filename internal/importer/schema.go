package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alexanderramin/bookable/internal/domain"
)

// FormImport is the top-level JSON structure for form import. The tree uses
// the canonical nested interchange shape; node and question ids are optional
// and filled in on conversion.
type FormImport struct {
	InternalName  string            `json:"internalName"`
	Slug          string            `json:"slug"`
	Theme         domain.Theme      `json:"theme,omitempty"`
	PrimaryColor  string            `json:"primaryColor,omitempty"`
	IsEnabled     bool              `json:"isEnabled,omitempty"`
	ServiceTree   *domain.Node      `json:"serviceTree"`
	BaseQuestions []domain.Question `json:"baseQuestions,omitempty"`
}

// LoadFormImport reads and parses a form import JSON file.
func LoadFormImport(path string) (*FormImport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFormImport(data)
}

// ParseFormImport parses form import JSON. Unknown fields are rejected so
// typos in hand-written files surface early.
func ParseFormImport(data []byte) (*FormImport, error) {
	var schema FormImport
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}
