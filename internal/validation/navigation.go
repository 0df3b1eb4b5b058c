package validation

// Level names the editing surface an issue should send the operator to.
type Level string

const (
	LevelRoot         Level = "root"
	LevelGroup        Level = "group"
	LevelService      Level = "service"
	LevelEmployees    Level = "employees"
	LevelAvailability Level = "availability"
	LevelQuestions    Level = "questions"
	LevelBranding     Level = "branding"
)

// Target is where navigation should land. NodeID is set only for
// node-scoped levels.
type Target struct {
	Level  Level  `json:"level"`
	NodeID string `json:"nodeId,omitempty"`
}

// NavigationTable maps issue codes to editing surfaces. Codes missing from
// the table fall back to their section's default level.
type NavigationTable map[Code]Level

// DefaultNavigation is the stock code to level mapping.
var DefaultNavigation = NavigationTable{
	CodeNameRequired:     LevelRoot,
	CodeSlugRequired:     LevelRoot,
	CodeSlugInvalidChars: LevelRoot,
	CodeSlugEdgeHyphen:   LevelRoot,
	CodeSlugDoubleHyphen: LevelRoot,
	CodeSlugLength:       LevelRoot,

	CodeTreeMissing:    LevelRoot,
	CodeTreeNoServices: LevelRoot,

	CodeGroupNoLabel: LevelGroup,
	CodeGroupEmpty:   LevelGroup,

	CodeServiceNoEmployees:         LevelEmployees,
	CodeServiceDefaultNotAssigned:  LevelEmployees,
	CodeServiceInvalidAvailability: LevelAvailability,
	CodeServiceInvalidBlockedTime:  LevelAvailability,
	CodeServiceInvalidDate:         LevelAvailability,
	CodeServiceNoAvailability:      LevelAvailability,

	CodeInvalidTheme:        LevelBranding,
	CodeInvalidPrimaryColor: LevelBranding,
}

var sectionFallback = map[Section]Level{
	SectionMetadata:  LevelRoot,
	SectionServices:  LevelService,
	SectionQuestions: LevelQuestions,
	SectionBranding:  LevelBranding,
}

// Path resolves the navigation target for an issue.
func (t NavigationTable) Path(issue Issue) Target {
	level, ok := t[issue.Code]
	if !ok {
		level, ok = sectionFallback[issue.Section]
		if !ok {
			level = LevelRoot
		}
	}

	target := Target{Level: level}
	switch level {
	case LevelGroup, LevelService, LevelEmployees, LevelAvailability:
		target.NodeID = issue.NodeID
	}
	if target.NodeID == "" && level != LevelRoot && level != LevelQuestions && level != LevelBranding {
		target.Level = LevelRoot
	}
	return target
}

// IssueNavigationPath resolves an issue against DefaultNavigation.
func IssueNavigationPath(issue Issue) Target {
	return DefaultNavigation.Path(issue)
}
