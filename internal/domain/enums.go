package domain

type NodeKind string

const (
	NodeRoot    NodeKind = "root"
	NodeGroup   NodeKind = "group"
	NodeService NodeKind = "service"
)

// ValidNodeKinds is the canonical set of accepted node kind strings.
var ValidNodeKinds = map[NodeKind]bool{
	NodeRoot: true, NodeGroup: true, NodeService: true,
}

// IsContainer reports whether nodes of this kind may hold children.
func (k NodeKind) IsContainer() bool {
	return k == NodeRoot || k == NodeGroup
}

type QuestionType string

const (
	QuestionShortText        QuestionType = "short-text"
	QuestionLongText         QuestionType = "long-text"
	QuestionDate             QuestionType = "date"
	QuestionFileUpload       QuestionType = "file-upload"
	QuestionDropdown         QuestionType = "dropdown"
	QuestionMultipleChoice   QuestionType = "multiple-choice"
	QuestionRadio            QuestionType = "radio"
	QuestionCheckboxList     QuestionType = "checkbox-list"
	QuestionYesNo            QuestionType = "yes-no"
	QuestionRequiredCheckbox QuestionType = "required-checkbox"
	QuestionContactInfo      QuestionType = "contact-info"
	QuestionAddress          QuestionType = "address"
)

// ValidQuestionTypes is the canonical set of accepted question type strings.
var ValidQuestionTypes = map[QuestionType]bool{
	QuestionShortText: true, QuestionLongText: true, QuestionDate: true,
	QuestionFileUpload: true, QuestionDropdown: true, QuestionMultipleChoice: true,
	QuestionRadio: true, QuestionCheckboxList: true, QuestionYesNo: true,
	QuestionRequiredCheckbox: true, QuestionContactInfo: true, QuestionAddress: true,
}

// HasOptions reports whether questions of this type carry a choice list.
func (t QuestionType) HasOptions() bool {
	switch t {
	case QuestionDropdown, QuestionMultipleChoice, QuestionRadio, QuestionCheckboxList:
		return true
	}
	return false
}

type WindowKind string

const (
	WindowRolling    WindowKind = "rolling"
	WindowFixed      WindowKind = "fixed"
	WindowIndefinite WindowKind = "indefinite"
)

type NoticeUnit string

const (
	NoticeMinutes NoticeUnit = "minutes"
	NoticeHours   NoticeUnit = "hours"
	NoticeDays    NoticeUnit = "days"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
