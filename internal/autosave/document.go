package autosave

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/bookable/internal/domain"
)

// Document is the set of watched fields. It is also what the persistence
// collaborator receives, already in nested-tree form.
type Document struct {
	InternalName  string            `json:"internalName"`
	Slug          string            `json:"slug"`
	ServiceTree   *domain.Node      `json:"serviceTree"`
	BaseQuestions []domain.Question `json:"baseQuestions"`
	Theme         domain.Theme      `json:"theme"`
	PrimaryColor  string            `json:"primaryColor"`
}

// DocumentFromForm extracts the watched fields of a form.
func DocumentFromForm(f *domain.FormConfig) Document {
	return Document{
		InternalName:  f.InternalName,
		Slug:          f.Slug,
		ServiceTree:   f.ServiceTree,
		BaseQuestions: f.BaseQuestions,
		Theme:         f.Theme,
		PrimaryColor:  f.PrimaryColor,
	}
}

// Apply copies the watched fields onto f.
func (d Document) Apply(f *domain.FormConfig) {
	f.InternalName = d.InternalName
	f.Slug = d.Slug
	f.ServiceTree = d.ServiceTree
	f.BaseQuestions = d.BaseQuestions
	f.Theme = d.Theme
	f.PrimaryColor = d.PrimaryColor
}

// Hash returns the hex sha256 of the document's JSON encoding. Struct fields
// encode in declaration order, so equal content always hashes equally.
func Hash(d Document) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
