package entity

import "time"

// FormUpdateSession is a scoped, standalone update to exactly one form type,
// issued by HR outside a full onboarding session. The raw token is returned
// to the caller once; only its SHA-256 hash is stored.
type FormUpdateSession struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	FormType   string `json:"form_type"`
	IssuedBy   string `json:"issued_by"`

	TokenHash string `json:"-"`

	// CurrentData is the canonical record snapshot at issuance;
	// UpdatedData stays empty until a successful submission.
	CurrentData string `json:"current_data"`
	UpdatedData string `json:"updated_data,omitempty"`

	// RequiresDownstreamApproval is true for forms whose change affects
	// payroll/tax/legal status. Such a merge stays pending until a manager
	// or HR acknowledgment.
	RequiresDownstreamApproval bool `json:"requires_downstream_approval"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsExpired reports whether the token TTL has lapsed.
func (u *FormUpdateSession) IsExpired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// IsUsed reports whether the single-use token has already been consumed.
func (u *FormUpdateSession) IsUsed() bool {
	return u.CompletedAt != nil
}

// AwaitingApproval reports whether a completed update still needs a
// downstream acknowledgment before it is authoritative.
func (u *FormUpdateSession) AwaitingApproval() bool {
	return u.IsUsed() && u.RequiresDownstreamApproval && u.AcknowledgedAt == nil
}
