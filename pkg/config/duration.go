package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration rejects zero and negative durations. Windows,
// timeouts, and retention periods all require a positive length.
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateDurationRange rejects durations outside [min, max].
func ValidateDurationRange(d, min, max time.Duration) error {
	switch {
	case min > max:
		return fmt.Errorf("bad range: min %v exceeds max %v", min, max)
	case d < min:
		return fmt.Errorf("duration %v below minimum %v", d, min)
	case d > max:
		return fmt.Errorf("duration %v above maximum %v", d, max)
	}
	return nil
}
