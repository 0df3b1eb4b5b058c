package domain

// Node is one element of the nested service tree. Children is only populated
// for root and group kinds; its order is the display and processing order.
// Nodes are treated as immutable once shared: edits go through the tree
// package, which copies the path it touches.
type Node struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Children    []*Node  `json:"children,omitempty"`

	ServiceDetails

	AdditionalQuestions []Question `json:"additionalQuestions,omitempty"`
}

// ServiceDetails holds the scheduling attributes carried by service nodes.
type ServiceDetails struct {
	Duration            *int               `json:"duration,omitempty"`
	Price               *float64           `json:"price,omitempty"`
	BufferTime          *int               `json:"bufferTime,omitempty"`
	Interval            *int               `json:"interval,omitempty"`
	SchedulingWindow    *SchedulingWindow  `json:"schedulingWindow,omitempty"`
	MinimumNotice       *MinimumNotice     `json:"minimumNotice,omitempty"`
	AvailabilityRules   []AvailabilityRule `json:"availabilityRules,omitempty"`
	BlockedTimes        []BlockedTime      `json:"blockedTimes,omitempty"`
	UnavailableDates    []string           `json:"unavailableDates,omitempty"`
	AssignedEmployeeIDs []string           `json:"assignedEmployeeIds,omitempty"`
	DefaultEmployeeID   string             `json:"defaultEmployeeId,omitempty"`
}

// SchedulingWindow limits how far ahead a service can be booked.
// RollingDays applies to rolling windows, StartDate/EndDate (YYYY-MM-DD) to fixed ones.
type SchedulingWindow struct {
	Kind        WindowKind `json:"type"`
	RollingDays *int       `json:"rollingDays,omitempty"`
	StartDate   string     `json:"startDate,omitempty"`
	EndDate     string     `json:"endDate,omitempty"`
}

type MinimumNotice struct {
	Value int        `json:"value"`
	Unit  NoticeUnit `json:"unit"`
}

// AvailabilityRule opens the given time ranges on the listed weekdays (0 = Sunday).
type AvailabilityRule struct {
	Days       []int       `json:"days"`
	TimeRanges []TimeRange `json:"timeRanges"`
}

// TimeRange is a half-open HH:MM interval.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BlockedTime closes time ranges on a single date. Empty TimeRanges blocks the whole day.
type BlockedTime struct {
	Date       string      `json:"date"`
	TimeRanges []TimeRange `json:"timeRanges,omitempty"`
}

// NodePatch is a partial update for a node. Nil fields are left untouched.
type NodePatch struct {
	Label               *string
	Description         *string
	Service             *ServiceDetails
	AdditionalQuestions *[]Question
}

// Apply returns a copy of n with the patch applied. Children are shared with n.
func (p NodePatch) Apply(n *Node) *Node {
	cp := *n
	if p.Label != nil {
		cp.Label = *p.Label
	}
	if p.Description != nil {
		cp.Description = *p.Description
	}
	if p.Service != nil {
		cp.ServiceDetails = *p.Service
	}
	if p.AdditionalQuestions != nil {
		cp.AdditionalQuestions = *p.AdditionalQuestions
	}
	return &cp
}

// IsEmpty reports whether the patch changes nothing.
func (p NodePatch) IsEmpty() bool {
	return p.Label == nil && p.Description == nil && p.Service == nil && p.AdditionalQuestions == nil
}
