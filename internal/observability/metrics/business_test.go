package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quotaguard/internal/domain/entity"
)

func TestRecordViolation(t *testing.T) {
	tests := []struct {
		name  string
		vtype entity.ViolationType
	}{
		{
			name:  "ip rate violation",
			vtype: entity.ViolationIPRate,
		},
		{
			name:  "user rate violation",
			vtype: entity.ViolationUserRate,
		},
		{
			name:  "quota violation",
			vtype: entity.ViolationQuota,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordViolation(tt.vtype)
			})
		})
	}
}

func TestRecordQuotaCheck(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		duration time.Duration
	}{
		{
			name:     "allowed",
			result:   QuotaResultAllowed,
			duration: 5 * time.Millisecond,
		},
		{
			name:     "denied",
			result:   QuotaResultDenied,
			duration: 3 * time.Millisecond,
		},
		{
			name:     "unlimited",
			result:   QuotaResultUnlimited,
			duration: 0,
		},
		{
			name:     "fail open",
			result:   QuotaResultFailOpen,
			duration: 250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordQuotaCheck(tt.result, tt.duration)
			})
		})
	}
}

func TestRecordSweep(t *testing.T) {
	tests := []struct {
		name              string
		windowsDeleted    int64
		violationsDeleted int64
		duration          time.Duration
	}{
		{
			name:              "rows deleted",
			windowsDeleted:    120,
			violationsDeleted: 45,
			duration:          2 * time.Second,
		},
		{
			name:              "nothing to delete",
			windowsDeleted:    0,
			violationsDeleted: 0,
			duration:          50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordSweep(tt.windowsDeleted, tt.violationsDeleted, tt.duration)
			})
		})
	}
}

func TestRecordSweepError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordSweepError()
	})
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{
			name:      "quota increment",
			operation: "increment_quota",
			duration:  5 * time.Millisecond,
		},
		{
			name:      "violation insert",
			operation: "insert_violation",
			duration:  2 * time.Millisecond,
		},
		{
			name:      "slow query",
			operation: "top_violators",
			duration:  500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{
			name:   "no connections",
			active: 0,
			idle:   0,
		},
		{
			name:   "some active",
			active: 5,
			idle:   10,
		},
		{
			name:   "all active",
			active: 25,
			idle:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	// Test that all functions can be called in sequence without panic
	assert.NotPanics(t, func() {
		RecordViolation(entity.ViolationQuota)
		RecordQuotaCheck(QuotaResultAllowed, 5*time.Millisecond)
		RecordSweep(10, 2, time.Second)
		RecordSweepError()
		RecordDBQuery("test_operation", 10*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
		RecordHTTPRequest("GET", "/api/quota", "200", 12*time.Millisecond, 0, 128)
	})
}
