package domain

import "strings"

// SubmissionStatus is the closed variant set for answer-sheet submissions.
// Raw backend strings are duck-typed; ParseSubmissionStatus maps them here so
// unrecognized values surface as StatusUnknown instead of silently counting
// as pending.
type SubmissionStatus int

const (
	SubmissionUnknown SubmissionStatus = iota
	SubmissionPending
	SubmissionInReview
	SubmissionCompleted
)

func (s SubmissionStatus) String() string {
	switch s {
	case SubmissionPending:
		return "pending"
	case SubmissionInReview:
		return "in_review"
	case SubmissionCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// CallStatus is the closed variant set for guidance calls.
type CallStatus int

const (
	CallUnknown CallStatus = iota
	CallRequested
	CallScheduled
	CallCompleted
)

func (s CallStatus) String() string {
	switch s {
	case CallRequested:
		return "requested"
	case CallScheduled:
		return "scheduled"
	case CallCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var submissionStatusByRaw = map[string]SubmissionStatus{
	"pending":   SubmissionPending,
	"submitted": SubmissionPending,
	"queued":    SubmissionPending,
	"received":  SubmissionPending,
	"new":       SubmissionPending,

	"in_review":    SubmissionInReview,
	"in-review":    SubmissionInReview,
	"under_review": SubmissionInReview,
	"reviewing":    SubmissionInReview,
	"assigned":     SubmissionInReview,

	"completed": SubmissionCompleted,
	"graded":    SubmissionCompleted,
	"evaluated": SubmissionCompleted,
	"checked":   SubmissionCompleted,
	"resolved":  SubmissionCompleted,
	"done":      SubmissionCompleted,
}

var callStatusByRaw = map[string]CallStatus{
	"requested": CallRequested,
	"pending":   CallRequested,
	"new":       CallRequested,

	"scheduled": CallScheduled,
	"booked":    CallScheduled,
	"confirmed": CallScheduled,

	"completed": CallCompleted,
	"done":      CallCompleted,
	"attended":  CallCompleted,
	"resolved":  CallCompleted,
}

// ParseSubmissionStatus classifies a raw backend status string. Matching is
// case-insensitive; unmapped values return SubmissionUnknown with
// ErrUnknownStatus.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := submissionStatusByRaw[key]; ok {
		return s, nil
	}
	return SubmissionUnknown, ErrUnknownStatus
}

// ParseCallStatus classifies a raw guidance-call status string.
func ParseCallStatus(raw string) (CallStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := callStatusByRaw[key]; ok {
		return s, nil
	}
	return CallUnknown, ErrUnknownStatus
}
