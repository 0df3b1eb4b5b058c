package domain

import "time"

// FormRevision is an immutable snapshot written each time a form is saved.
// Hash identifies the watched content so identical saves can be spotted.
type FormRevision struct {
	FormID    string
	Version   int
	Form      *FormConfig
	Hash      string
	CreatedAt time.Time
}
