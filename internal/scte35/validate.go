package scte35

import (
	"fmt"
	"time"
)

// maxTicks is the largest representable 33-bit PTS value (2^33 - 1).
const maxTicks = 1<<33 - 1

const (
	maxBreakDuration = 600 * time.Second
	staleSignalAge   = 180 * time.Second
)

// ValidationResult carries the outcome of Validate: Reject stops the state
// machine from opening a break for this signal; Warnings are surfaced to
// telemetry but do not block acceptance (spec §4.2).
type ValidationResult struct {
	Reject   error
	Warnings []string
}

// Accepted reports whether the signal should be handed to the ad-break state
// machine.
func (v ValidationResult) Accepted() bool { return v.Reject == nil }

// Validate applies spec §4.2's acceptance rules to a decoded Signal. now is
// the wall-clock time the signal is being evaluated at (normally
// time.Now()); signal age is measured from ReceivedAt. Validate only
// inspects the signal.
func Validate(sig *Signal, now time.Time) ValidationResult {
	var res ValidationResult

	if sig.Duration != nil {
		if *sig.Duration <= 0 {
			res.Reject = fmt.Errorf("scte35: signal %s has non-positive duration %s", sig.EventID, *sig.Duration)
			return res
		}
		if *sig.Duration > maxBreakDuration {
			res.Reject = fmt.Errorf("scte35: signal %s duration %s exceeds runaway limit %s", sig.EventID, *sig.Duration, maxBreakDuration)
			return res
		}
	}

	if sig.PTSTicks != nil && *sig.PTSTicks > maxTicks {
		res.Reject = fmt.Errorf("scte35: signal %s pts_time %d exceeds 33-bit range", sig.EventID, *sig.PTSTicks)
		return res
	}

	if !sig.ReceivedAt.IsZero() {
		age := now.Sub(sig.ReceivedAt)
		if age > staleSignalAge {
			res.Warnings = append(res.Warnings, fmt.Sprintf("signal %s is %s old, possibly stale", sig.EventID, age.Round(time.Second)))
		}
	}

	if !sig.CRCValid {
		res.Warnings = append(res.Warnings, fmt.Sprintf("signal %s failed CRC-32 validation", sig.EventID))
	}

	return res
}
