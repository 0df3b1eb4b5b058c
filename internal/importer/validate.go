package importer

import (
	"fmt"

	"github.com/alexanderramin/bookable/internal/domain"
)

// ValidateFormImport checks the import for structural errors before
// conversion. Business rules (employees, durations, slug style) are left to
// the validation package so a draft can still be imported.
// Returns a slice of all errors found.
func ValidateFormImport(schema *FormImport) []error {
	var errs []error

	if schema.InternalName == "" {
		errs = append(errs, fmt.Errorf("internalName is required"))
	}
	if err := domain.ValidateSlugFormat(schema.Slug); err != nil {
		errs = append(errs, fmt.Errorf("slug: %w", err))
	}

	if schema.ServiceTree == nil {
		errs = append(errs, fmt.Errorf("serviceTree is required"))
	} else {
		if schema.ServiceTree.Kind != "" && schema.ServiceTree.Kind != domain.NodeRoot {
			errs = append(errs, fmt.Errorf("serviceTree: top-level node must have type %q, got %q", domain.NodeRoot, schema.ServiceTree.Kind))
		}
		ids := make(map[string]string)
		if root := schema.ServiceTree.ID; root != "" {
			ids[root] = "serviceTree"
		}
		for i, child := range schema.ServiceTree.Children {
			errs = append(errs, validateNode(child, fmt.Sprintf("serviceTree.children[%d]", i), ids)...)
		}
	}

	errs = append(errs, validateQuestions(schema.BaseQuestions, "baseQuestions")...)

	return errs
}

func validateNode(n *domain.Node, path string, ids map[string]string) []error {
	if n == nil {
		return []error{fmt.Errorf("%s: node is null", path)}
	}
	var errs []error

	if n.ID != "" {
		if prev, dup := ids[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %q already used at %s", path, n.ID, prev))
		} else {
			ids[n.ID] = path
		}
	}
	switch {
	case n.Kind == "":
		errs = append(errs, fmt.Errorf("%s: type is required", path))
	case n.Kind == domain.NodeRoot:
		errs = append(errs, fmt.Errorf("%s: only the top-level node may have type %q", path, domain.NodeRoot))
	case !domain.ValidNodeKinds[n.Kind]:
		errs = append(errs, fmt.Errorf("%s: invalid type %q", path, n.Kind))
	}
	if n.Kind == domain.NodeService && len(n.Children) > 0 {
		errs = append(errs, fmt.Errorf("%s: services cannot have children", path))
	}
	if n.Kind != domain.NodeService && len(n.AdditionalQuestions) > 0 {
		errs = append(errs, fmt.Errorf("%s: only services can have additionalQuestions", path))
	}

	errs = append(errs, validateQuestions(n.AdditionalQuestions, path+".additionalQuestions")...)
	for i, child := range n.Children {
		errs = append(errs, validateNode(child, fmt.Sprintf("%s.children[%d]", path, i), ids)...)
	}
	return errs
}

func validateQuestions(qs []domain.Question, path string) []error {
	var errs []error
	seen := make(map[string]int, len(qs))
	for i, q := range qs {
		if q.ID != "" {
			if prev, dup := seen[q.ID]; dup {
				errs = append(errs, fmt.Errorf("%s[%d]: question id %q already used at %s[%d]", path, i, q.ID, path, prev))
			} else {
				seen[q.ID] = i
			}
		}
		if q.Type == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: type is required", path, i))
		} else if !domain.ValidQuestionTypes[q.Type] {
			errs = append(errs, fmt.Errorf("%s[%d]: invalid type %q", path, i, q.Type))
		}
	}
	return errs
}
