package domain

import "time"

// SubmissionCounts buckets a user's submissions by classified status.
type SubmissionCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InReview  int `json:"in_review"`
	Completed int `json:"completed"`
	Unknown   int `json:"unknown,omitempty"`
}

// CallCounts buckets a user's guidance calls by classified status.
type CallCounts struct {
	Total     int `json:"total"`
	Requested int `json:"requested"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Unknown   int `json:"unknown,omitempty"`
}

// UserData is the denormalized view-model the UI consumes. It is recomputed
// in full on every session load and patched locally only after a known
// mutation succeeds.
type UserData struct {
	UserID    string   `json:"user_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone,omitempty"`
	Plan      PlanTier `json:"plan"`
	Role      Role     `json:"role"`
	Unlimited bool     `json:"unlimited"`

	Submissions SubmissionCounts `json:"submissions"`
	Calls       CallCounts       `json:"calls"`

	SubmissionsLeft int `json:"submissions_left"`
	CallsLeft       int `json:"calls_left"`

	PlanStart  *time.Time `json:"plan_start,omitempty"`
	ValidUntil string     `json:"valid_until,omitempty"`
	DaysLeft   int        `json:"days_left,omitempty"`
}

// RemainingSubmissions computes the submissions-left counter for a tier.
// Unmetered tiers report the sentinel; metered tiers subtract usage from the
// quota, floored at zero.
func RemainingSubmissions(limits PlanLimits, total int) int {
	if limits.UnlimitedSubmissions {
		return UnlimitedQuota
	}
	left := limits.Submissions - total
	if left < 0 {
		return 0
	}
	return left
}

// RemainingCalls computes the guidance-calls-left counter.
func RemainingCalls(limits PlanLimits, total int) int {
	left := limits.GuidanceCalls - total
	if left < 0 {
		return 0
	}
	return left
}

// Validity derives the valid-until date and whole days remaining from a plan
// start. Applies only to lapsing tiers with a recorded start; the free tier
// and start-less profiles report no window. Dates are UTC; a start exactly
// ValidityDays in the past yields zero, never a negative figure.
func Validity(start *time.Time, limits PlanLimits, now time.Time) (string, int, bool) {
	if start == nil || limits.ValidityDays <= 0 {
		return "", 0, false
	}
	until := start.UTC().AddDate(0, 0, limits.ValidityDays)
	days := int(until.Sub(now.UTC()).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return until.Format("2 Jan 2006"), days, true
}
