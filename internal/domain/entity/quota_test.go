package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodKeyFor(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{
			name: "mid month",
			at:   time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
			want: "2025-06",
		},
		{
			name: "last instant of month",
			at:   time.Date(2025, 6, 30, 23, 59, 59, 999000000, time.UTC),
			want: "2025-06",
		},
		{
			name: "first instant of next month",
			at:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			want: "2025-07",
		},
		{
			// Period boundaries are evaluated in UTC regardless of the
			// timestamp's zone.
			name: "non-UTC zone normalized",
			at:   time.Date(2025, 7, 1, 8, 0, 0, 0, time.FixedZone("JST", 9*3600)),
			want: "2025-06",
		},
		{
			name: "december",
			at:   time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			want: "2025-12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodKeyFor(tt.at))
		})
	}
}

func TestNextPeriodStart(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			at:   time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls into next year",
			at:   time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first instant of month",
			at:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPeriodStart(tt.at))
		})
	}
}

func TestQuotaPeriod_Remaining(t *testing.T) {
	tests := []struct {
		name  string
		used  int64
		limit int64
		want  int64
	}{
		{name: "unused", used: 0, limit: 1000, want: 1000},
		{name: "one left", used: 999, limit: 1000, want: 1},
		{name: "exhausted", used: 1000, limit: 1000, want: 0},
		{name: "over limit clamps to zero", used: 1001, limit: 1000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := QuotaPeriod{Used: tt.used, Limit: tt.limit}
			assert.Equal(t, tt.want, p.Remaining())
		})
	}
}

func TestQuotaPeriod_Exhausted(t *testing.T) {
	assert.False(t, (&QuotaPeriod{Used: 99, Limit: 100}).Exhausted())
	assert.True(t, (&QuotaPeriod{Used: 100, Limit: 100}).Exhausted())
}

func TestQuotaPeriod_Validate(t *testing.T) {
	valid := QuotaPeriod{
		OrganizationID: "org-42",
		PeriodKey:      "2025-06",
		Used:           10,
		Limit:          1000,
	}

	t.Run("valid period", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("empty organization", func(t *testing.T) {
		p := valid
		p.OrganizationID = ""
		assert.Error(t, p.Validate())
	})

	t.Run("malformed period key", func(t *testing.T) {
		p := valid
		p.PeriodKey = "June 2025"
		assert.Error(t, p.Validate())
	})

	t.Run("negative used", func(t *testing.T) {
		p := valid
		p.Used = -1
		assert.Error(t, p.Validate())
	})
}
