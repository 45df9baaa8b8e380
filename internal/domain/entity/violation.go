package entity

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType classifies which enforcement check rejected a request.
type ViolationType string

const (
	// ViolationIPRate is an IP-based rate limit rejection.
	ViolationIPRate ViolationType = "ip_rate"

	// ViolationUserRate is a user-based rate limit rejection.
	ViolationUserRate ViolationType = "user_rate"

	// ViolationQuota is a monthly quota rejection.
	ViolationQuota ViolationType = "quota"
)

// String returns the string representation of the violation type.
func (t ViolationType) String() string {
	return string(t)
}

// IsValid checks if the violation type is a recognized value.
func (t ViolationType) IsValid() bool {
	switch t {
	case ViolationIPRate, ViolationUserRate, ViolationQuota:
		return true
	default:
		return false
	}
}

// ViolationRecord is one append-only audit entry for a rejected request.
// Records are never updated after insertion.
type ViolationRecord struct {
	ID             string
	Identifier     string
	Kind           IdentifierKind
	Type           ViolationType
	AttemptedCount int64
	Limit          int64
	Endpoint       string
	UserAgent      string
	CreatedAt      time.Time
}

// NewViolationRecord builds a ViolationRecord with a fresh UUID and the
// given creation time.
func NewViolationRecord(identifier string, kind IdentifierKind, vtype ViolationType, attempted, limit int64, endpoint, userAgent string, at time.Time) *ViolationRecord {
	return &ViolationRecord{
		ID:             uuid.NewString(),
		Identifier:     identifier,
		Kind:           kind,
		Type:           vtype,
		AttemptedCount: attempted,
		Limit:          limit,
		Endpoint:       endpoint,
		UserAgent:      userAgent,
		CreatedAt:      at,
	}
}

// Validate validates the ViolationRecord entity fields.
func (v *ViolationRecord) Validate() error {
	if v.Identifier == "" {
		return &ValidationError{Field: "identifier", Message: "must not be empty"}
	}
	if !v.Kind.IsValid() {
		return &ValidationError{Field: "kind", Message: "must be IP, USER, or ORGANIZATION"}
	}
	if !v.Type.IsValid() {
		return &ValidationError{Field: "violation_type", Message: "must be ip_rate, user_rate, or quota"}
	}
	if v.AttemptedCount < 0 {
		return &ValidationError{Field: "attempted_count", Message: "must be non-negative"}
	}
	if v.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "must be non-negative"}
	}
	return nil
}

// ViolatorStat is one row of the top-violators aggregation: an identifier
// and how many violations it accumulated in the queried range.
type ViolatorStat struct {
	Identifier string
	Kind       IdentifierKind
	Count      int64
	LastSeen   time.Time
}
