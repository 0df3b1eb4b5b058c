package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/spf13/pflag"
)

// themeValue is a pflag.Value restricted to the known themes.
type themeValue struct{ dst *domain.Theme }

var _ pflag.Value = themeValue{}

func (v themeValue) String() string {
	if v.dst == nil {
		return ""
	}
	return string(*v.dst)
}

func (v themeValue) Set(s string) error {
	switch t := domain.Theme(strings.ToLower(s)); t {
	case domain.ThemeLight, domain.ThemeDark:
		*v.dst = t
		return nil
	}
	return fmt.Errorf("theme must be light or dark")
}

func (themeValue) Type() string { return "theme" }

// questionTypeValue is a pflag.Value restricted to the known question types.
type questionTypeValue struct{ dst *domain.QuestionType }

var _ pflag.Value = questionTypeValue{}

func (v questionTypeValue) String() string {
	if v.dst == nil {
		return ""
	}
	return string(*v.dst)
}

func (v questionTypeValue) Set(s string) error {
	t := domain.QuestionType(strings.ToLower(s))
	if !domain.ValidQuestionTypes[t] {
		return fmt.Errorf("unknown question type %q (want one of %s)", s, strings.Join(questionTypeNames(), ", "))
	}
	*v.dst = t
	return nil
}

func (questionTypeValue) Type() string { return "type" }

func questionTypeNames() []string {
	names := make([]string, 0, len(domain.ValidQuestionTypes))
	for t := range domain.ValidQuestionTypes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// changedInt returns a pointer to v when the flag was set, nil otherwise.
func changedInt(fs *pflag.FlagSet, name string, v int) *int {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}

func changedFloat(fs *pflag.FlagSet, name string, v float64) *float64 {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}

func changedString(fs *pflag.FlagSet, name, v string) *string {
	if !fs.Changed(name) {
		return nil
	}
	return &v
}
