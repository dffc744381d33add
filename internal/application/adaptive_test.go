package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

func TestClassifySnapshot(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *model.Snapshot
		wantTier ActivityTier
	}{
		{"nil snapshot is settled", nil, TierSettled},
		{"empty snapshot is settled", &model.Snapshot{}, TierSettled},
		{"final verdicts are settled", &model.Snapshot{Repositories: []model.RepositoryReport{
			{Overall: model.OverallSuccess},
			{Overall: model.OverallFailure},
			{Overall: model.OverallError, Error: "Not Found"},
		}}, TierSettled},
		{"one pending repository", &model.Snapshot{Repositories: []model.RepositoryReport{
			{Overall: model.OverallSuccess},
			{Overall: model.OverallPending},
		}}, TierPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTier, classifySnapshot(tt.snapshot))
		})
	}
}

func TestTierInterval(t *testing.T) {
	tests := []struct {
		name       string
		tier       ActivityTier
		configured time.Duration
		wantDur    time.Duration
	}{
		{"settled uses configured", TierSettled, 5 * time.Minute, 5 * time.Minute},
		{"pending shortens to a minute", TierPending, 5 * time.Minute, time.Minute},
		{"pending never lengthens", TierPending, 30 * time.Second, 30 * time.Second},
		{"unknown uses configured", ActivityTier(99), 5 * time.Minute, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDur, tierInterval(tt.tier, tt.configured))
		})
	}
}

func TestActivityTierString(t *testing.T) {
	assert.Equal(t, "settled", TierSettled.String())
	assert.Equal(t, "pending", TierPending.String())
	assert.Equal(t, "unknown", ActivityTier(99).String())
}
