package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

func TestClient_FetchIdentifiers(t *testing.T) {
	ids, err := NewClient(1).FetchIdentifiers(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALERT-00001", "ALERT-00002", "ALERT-00003"}, ids)
}

func TestClient_FetchIdentifiers_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(1).FetchIdentifiers(ctx, 3, nil)
	assert.True(t, errors.Is(err, source.ErrSourceUnavailable))
}

func TestClient_FetchDetail_Invariants(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)
	c := NewClient(42).WithClock(func() time.Time { return now })

	sawTerminal, sawOpen := false, false
	for i := 0; i < 500; i++ {
		rec, err := c.FetchDetail(context.Background(), "ALERT-00001")
		require.NoError(t, err)

		assert.Equal(t, "ALERT-00001", rec.AlertID)
		assert.Contains(t, model.AlertTypes, rec.TypeOfAlert)
		assert.Contains(t, model.Statuses, rec.Status)
		assert.Contains(t, model.ImpactLevels, rec.ImpactLevel)
		assert.GreaterOrEqual(t, rec.Priority, 1)
		assert.LessOrEqual(t, rec.Priority, 5)
		assert.True(t, rec.CreationDate.Before(now))
		assert.False(t, rec.CreationDate.Before(now.AddDate(0, 0, -91)))

		if model.IsTerminalStatus(rec.Status) {
			sawTerminal = true
			require.NotNil(t, rec.ResolutionDate, "status %s must carry a resolution date", rec.Status)
			assert.True(t, rec.ResolutionDate.After(rec.CreationDate))
		} else {
			assert.Nil(t, rec.ResolutionDate, "status %s must not carry a resolution date", rec.Status)
		}
		if rec.Status == model.StatusOpen {
			sawOpen = true
		}
	}
	assert.True(t, sawTerminal)
	assert.True(t, sawOpen)
}

func TestClient_DeterministicSeed(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	a := NewClient(7).WithClock(now)
	b := NewClient(7).WithClock(now)
	for i := 0; i < 20; i++ {
		ra, _ := a.FetchDetail(context.Background(), "X")
		rb, _ := b.FetchDetail(context.Background(), "X")
		assert.Equal(t, ra, rb)
	}
}
