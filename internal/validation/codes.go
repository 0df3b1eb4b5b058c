package validation

// Code is the stable, machine-readable identifier of an issue.
type Code string

const (
	// metadata
	CodeNameRequired     Code = "NAME_REQUIRED"
	CodeSlugRequired     Code = "SLUG_REQUIRED"
	CodeSlugInvalidChars Code = "SLUG_INVALID_CHARS"
	CodeSlugEdgeHyphen   Code = "SLUG_EDGE_HYPHEN"
	CodeSlugDoubleHyphen Code = "SLUG_DOUBLE_HYPHEN"
	CodeSlugLength       Code = "SLUG_LENGTH"

	// tree structure
	CodeTreeMissing     Code = "TREE_MISSING"
	CodeTreeNoServices  Code = "TREE_NO_SERVICES"
	CodeDuplicateNodeID Code = "DUPLICATE_NODE_ID"
	CodeNodeInvalidKind Code = "NODE_INVALID_KIND"

	// group nodes
	CodeGroupNoLabel Code = "GROUP_NO_LABEL"
	CodeGroupEmpty   Code = "GROUP_EMPTY"

	// service nodes
	CodeServiceNoLabel             Code = "SERVICE_NO_LABEL"
	CodeServiceNoEmployees         Code = "SERVICE_NO_EMPLOYEES"
	CodeServiceInvalidDuration     Code = "SERVICE_INVALID_DURATION"
	CodeServiceNegativePrice       Code = "SERVICE_NEGATIVE_PRICE"
	CodeServiceNegativeBuffer      Code = "SERVICE_NEGATIVE_BUFFER"
	CodeServiceInvalidInterval     Code = "SERVICE_INVALID_INTERVAL"
	CodeServiceIntervalTooLong     Code = "SERVICE_INTERVAL_EXCEEDS_DURATION"
	CodeServiceDefaultNotAssigned  Code = "SERVICE_DEFAULT_EMPLOYEE_NOT_ASSIGNED"
	CodeServiceInvalidNotice       Code = "SERVICE_INVALID_MINIMUM_NOTICE"
	CodeServiceInvalidWindow       Code = "SERVICE_INVALID_SCHEDULING_WINDOW"
	CodeServiceInvalidAvailability Code = "SERVICE_INVALID_AVAILABILITY"
	CodeServiceInvalidBlockedTime  Code = "SERVICE_INVALID_BLOCKED_TIME"
	CodeServiceInvalidDate         Code = "SERVICE_INVALID_UNAVAILABLE_DATE"
	CodeServiceNoAvailability      Code = "SERVICE_NO_AVAILABILITY"

	// questions
	CodeQuestionNoLabel         Code = "QUESTION_NO_LABEL"
	CodeQuestionNoName          Code = "QUESTION_NO_NAME"
	CodeQuestionDuplicateName   Code = "QUESTION_DUPLICATE_NAME"
	CodeQuestionDuplicateID     Code = "QUESTION_DUPLICATE_ID"
	CodeQuestionUnknownType     Code = "QUESTION_UNKNOWN_TYPE"
	CodeQuestionNoOptions       Code = "QUESTION_NO_OPTIONS"
	CodeQuestionBlankOption     Code = "QUESTION_BLANK_OPTION"
	CodeQuestionDuplicateOption Code = "QUESTION_DUPLICATE_OPTION"

	// branding
	CodeInvalidTheme        Code = "INVALID_THEME"
	CodeInvalidPrimaryColor Code = "INVALID_PRIMARY_COLOR"
)

// Section groups issues by the editing surface they belong to.
type Section string

const (
	SectionServices  Section = "services"
	SectionQuestions Section = "questions"
	SectionBranding  Section = "branding"
	SectionMetadata  Section = "metadata"
)

// AllSections lists every section in display order.
var AllSections = []Section{SectionMetadata, SectionServices, SectionQuestions, SectionBranding}
