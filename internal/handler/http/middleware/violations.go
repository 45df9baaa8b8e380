package middleware

import (
	"quotaguard/internal/domain/entity"
)

// ViolationRecorder receives one record per rejected request. The
// production implementation queues records asynchronously; the
// middleware never waits on it.
type ViolationRecorder interface {
	Record(v *entity.ViolationRecord)
}

// noopViolationRecorder drops all records. Used when no recorder is
// configured.
type noopViolationRecorder struct{}

func (noopViolationRecorder) Record(*entity.ViolationRecord) {}
