package domain

import "time"

// NormalizedDocument is the flat, id-indexed shape of a form. Nodes point at
// their parent; containers list children and services list questions in order.
type NormalizedDocument struct {
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	Slug          string                     `json:"slug"`
	Theme         Theme                      `json:"theme,omitempty"`
	PrimaryColor  string                     `json:"primaryColor,omitempty"`
	BaseQuestions []Question                 `json:"baseQuestions"`
	RootID        string                     `json:"rootId"`
	Nodes         map[string]*NormalizedNode `json:"nodes"`
	Questions     map[string]*QuestionRecord `json:"questions"`
	IsDirty       bool                       `json:"isDirty"`
	LastSaved     *time.Time                 `json:"lastSaved,omitempty"`
}

type NormalizedNode struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"type"`
	ParentID    *string  `json:"parentId"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	ChildIDs    []string `json:"childIds,omitempty"`
	QuestionIDs []string `json:"questionIds,omitempty"`

	ServiceDetails
}

// QuestionRecord wraps a service-scoped question with its owner and a
// document-wide ordering key.
type QuestionRecord struct {
	ID        string   `json:"id"`
	ServiceID string   `json:"serviceId"`
	Order     int      `json:"order"`
	Config    Question `json:"config"`
}

// Metadata extracts the form-level fields.
func (d *NormalizedDocument) Metadata() Metadata {
	return Metadata{
		ID:           d.ID,
		Name:         d.Name,
		Slug:         d.Slug,
		Theme:        d.Theme,
		PrimaryColor: d.PrimaryColor,
	}
}
