package usecase

import (
	"testing"

	"AOWI/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSumsSameSide(t *testing.T) {
	a := NewSignalAggregator(ConflictDominant, WithOrderIDs(seqIDs()))
	batch := a.Aggregate([]models.Intent{
		intent("ultra_scalp", "EURUSD", models.SideBuy, "0.10"),
		intent("vwap_magnet", "EURUSD", models.SideBuy, "0.05"),
	})

	require.Len(t, batch.Orders, 1)
	o := batch.Orders[0]
	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, models.SideBuy, o.Side)
	assert.True(t, o.Volume.Equal(dec("0.15")), "got %s", o.Volume)
	assert.Equal(t, "aowi:ultra_scalp,vwap_magnet", o.Comment)
	assert.Len(t, o.SourceIntents, 2)
	assert.Empty(t, batch.Conflicts)
}

func TestAggregateKeepsFirstSeenSymbolOrder(t *testing.T) {
	a := NewSignalAggregator(ConflictDominant)
	batch := a.Aggregate([]models.Intent{
		intent("a", "USDJPY", models.SideBuy, "0.2"),
		intent("b", "EURUSD", models.SideSell, "0.1"),
		intent("c", "USDJPY", models.SideBuy, "0.1"),
	})
	require.Len(t, batch.Orders, 2)
	assert.Equal(t, "USDJPY", batch.Orders[0].Symbol)
	assert.Equal(t, "EURUSD", batch.Orders[1].Symbol)
}

func TestAggregateConflicts(t *testing.T) {
	tests := []struct {
		name       string
		policy     ConflictPolicy
		buy, sell  string
		wantOrder  bool
		wantSide   models.Side
		wantVolume string
		resolution string
		sources    int
	}{
		{name: "dominant buy", policy: ConflictDominant, buy: "0.3", sell: "0.1", wantOrder: true, wantSide: models.SideBuy, wantVolume: "0.3", resolution: models.ConflictKeptBuy, sources: 1},
		{name: "dominant sell", policy: ConflictDominant, buy: "0.1", sell: "0.25", wantOrder: true, wantSide: models.SideSell, wantVolume: "0.25", resolution: models.ConflictKeptSell, sources: 1},
		{name: "net", policy: ConflictNet, buy: "0.3", sell: "0.1", wantOrder: true, wantSide: models.SideBuy, wantVolume: "0.2", resolution: models.ConflictNetted, sources: 2},
		{name: "tie dominant", policy: ConflictDominant, buy: "0.1", sell: "0.1", resolution: models.ConflictDropped},
		{name: "tie net", policy: ConflictNet, buy: "0.10", sell: "0.1", resolution: models.ConflictDropped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := NewSignalAggregator(tt.policy).Aggregate([]models.Intent{
				intent("ultra_scalp", "EURUSD", models.SideBuy, tt.buy),
				intent("liquidity_sweep", "EURUSD", models.SideSell, tt.sell),
			})
			require.Len(t, batch.Conflicts, 1)
			assert.Equal(t, tt.resolution, batch.Conflicts[0].Resolution)
			if !tt.wantOrder {
				assert.Empty(t, batch.Orders)
				assert.Len(t, batch.Conflicts[0].Discarded, 2)
				return
			}
			require.Len(t, batch.Orders, 1)
			assert.Equal(t, tt.wantSide, batch.Orders[0].Side)
			assert.True(t, batch.Orders[0].Volume.Equal(dec(tt.wantVolume)), "got %s", batch.Orders[0].Volume)
			assert.Len(t, batch.Orders[0].SourceIntents, tt.sources)
		})
	}
}

func TestAggregateSkipsMalformedIntents(t *testing.T) {
	batch := NewSignalAggregator("").Aggregate([]models.Intent{
		intent("a", "", models.SideBuy, "0.1"),
		intent("b", "EURUSD", "hold", "0.1"),
		intent("c", "EURUSD", models.SideBuy, "0"),
		intent("d", "EURUSD", models.SideBuy, "0.1"),
	})
	assert.Equal(t, 3, batch.Skipped)
	require.Len(t, batch.Orders, 1)
	assert.Equal(t, "aowi:d", batch.Orders[0].Comment)
}

func TestAggregateDefaultComment(t *testing.T) {
	batch := NewSignalAggregator(ConflictDominant).Aggregate([]models.Intent{
		intent("", "EURUSD", models.SideBuy, "0.1"),
	})
	require.Len(t, batch.Orders, 1)
	assert.Equal(t, "AOWI auto order", batch.Orders[0].Comment)
}

func TestAggregateEmpty(t *testing.T) {
	batch := NewSignalAggregator(ConflictDominant).Aggregate(nil)
	assert.Empty(t, batch.Orders)
	assert.Empty(t, batch.Conflicts)
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ConflictDominant, p)

	p, err = ParseConflictPolicy("NET")
	require.NoError(t, err)
	assert.Equal(t, ConflictNet, p)

	_, err = ParseConflictPolicy("average")
	assert.Error(t, err)
}
