package application

import (
	"time"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// ActivityTier represents the refresh frequency classification of a snapshot.
type ActivityTier int

const (
	// TierSettled indicates every repository reached a final verdict. Polls on
	// the configured interval.
	TierSettled ActivityTier = iota
	// TierPending indicates at least one repository is still pending. Polls
	// every minute so the dashboard follows running builds.
	TierPending
)

// intervalPending is the refresh interval while builds are running.
const intervalPending = 1 * time.Minute

// String returns a human-readable name for the activity tier.
func (t ActivityTier) String() string {
	switch t {
	case TierSettled:
		return "settled"
	case TierPending:
		return "pending"
	default:
		return "unknown"
	}
}

// classifySnapshot determines the activity tier of a snapshot. A nil snapshot
// is treated as settled.
func classifySnapshot(snapshot *model.Snapshot) ActivityTier {
	if snapshot != nil && snapshot.HasPending() {
		return TierPending
	}
	return TierSettled
}

// tierInterval returns the refresh interval for the given tier. The pending
// interval never exceeds the configured one.
func tierInterval(tier ActivityTier, configured time.Duration) time.Duration {
	if tier == TierPending && intervalPending < configured {
		return intervalPending
	}
	return configured
}
