package domain

import "time"

// Role enumerates account roles as stored in the backend profiles table.
type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

// Elevated reports whether the role bypasses quota accounting entirely.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleMentor
}

// Profile is the read-mostly copy of a backend profile row. The backend owns
// the record; this struct only mirrors the fields the service consumes.
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Plan      PlanTier   `json:"plan"`
	Role      Role       `json:"role"`
	PlanStart *time.Time `json:"plan_start,omitempty"`
	City      string     `json:"city,omitempty"`
	Optional  string     `json:"optional_subject,omitempty"`
	Attempt   int        `json:"attempt,omitempty"`
}
