// Package violation exposes admin endpoints over the violation log:
// recent violations, top violators, and aggregate counts.
package violation

import (
	"time"

	"quotaguard/internal/domain/entity"
)

// DTO is the JSON shape of one violation record.
type DTO struct {
	ID             string    `json:"id"`
	Identifier     string    `json:"identifier"`
	Kind           string    `json:"kind"`
	ViolationType  string    `json:"violation_type"`
	AttemptedCount int64     `json:"attempted_count"`
	Limit          int64     `json:"limit"`
	Endpoint       string    `json:"endpoint,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toDTO(v *entity.ViolationRecord) DTO {
	return DTO{
		ID:             v.ID,
		Identifier:     v.Identifier,
		Kind:           v.Kind.String(),
		ViolationType:  v.Type.String(),
		AttemptedCount: v.AttemptedCount,
		Limit:          v.Limit,
		Endpoint:       v.Endpoint,
		UserAgent:      v.UserAgent,
		CreatedAt:      v.CreatedAt,
	}
}

// ViolatorDTO is the JSON shape of one top-violators row.
type ViolatorDTO struct {
	Identifier string    `json:"identifier"`
	Kind       string    `json:"kind"`
	Count      int64     `json:"count"`
	LastSeen   time.Time `json:"last_seen"`
}

// StatsDTO is the JSON shape of an aggregate violation count.
type StatsDTO struct {
	Since time.Time `json:"since"`
	Type  string    `json:"type,omitempty"`
	Count int64     `json:"count"`
}
