package domain

// Question is a booking form field. Name is the machine key submitted with a
// booking; Label is what the customer sees.
type Question struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Label       string             `json:"label"`
	Type        QuestionType       `json:"type"`
	Required    bool               `json:"required,omitempty"`
	Placeholder string             `json:"placeholder,omitempty"`
	Options     []QuestionOption   `json:"options,omitempty"`
	ContactInfo *ContactInfoConfig `json:"contactInfoConfig,omitempty"`
	Address     *AddressConfig     `json:"addressConfig,omitempty"`
}

type QuestionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ContactInfoConfig selects which contact sub-fields are mandatory.
type ContactInfoConfig struct {
	RequireFirstName bool `json:"requireFirstName"`
	RequireLastName  bool `json:"requireLastName"`
	RequireEmail     bool `json:"requireEmail"`
	RequirePhone     bool `json:"requirePhone"`
	RequireCompany   bool `json:"requireCompany"`
}

// AddressConfig selects which address sub-fields are mandatory.
type AddressConfig struct {
	RequireStreet     bool `json:"requireStreet"`
	RequireCity       bool `json:"requireCity"`
	RequireState      bool `json:"requireState"`
	RequirePostalCode bool `json:"requirePostalCode"`
	RequireCountry    bool `json:"requireCountry"`
}
