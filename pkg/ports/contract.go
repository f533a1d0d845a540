package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	year := domain.Cell("year_dropdown", "value")
	chart := domain.Cell("population_chart", "figure")
	sample := func(seq uint64) *domain.Snapshot {
		return &domain.Snapshot{Seq: seq, Cells: map[domain.CellID]domain.CellState{
			year: {Value: domain.Int(2010), Version: 3, Status: domain.StatusOK},
			chart: {
				Value:   domain.Fig(domain.Figure{Type: domain.FigureBar, Title: "Top twenty", Traces: []domain.Trace{{Labels: []string{"China"}, Values: []float64{1.3e9}}}}),
				Version: 2,
				Status:  domain.StatusError,
				Error:   "boom",
			},
		}}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := sample(7)
		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, uint64(7), loaded.Seq)
		require.Len(t, loaded.Cells, 2)

		got, _ := loaded.Get(year)
		assert.Equal(t, uint64(3), got.Version)
		n, ok := got.Value.AsInt()
		assert.True(t, ok)
		assert.Equal(t, 2010, n)

		fig, _ := loaded.Get(chart)
		assert.Equal(t, domain.StatusError, fig.Status)
		assert.Equal(t, "boom", fig.Error)
		assert.True(t, snap.Cells[chart].Value.Equal(fig.Value), "figures survive persistence")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, sample(8)))
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), loaded.Seq)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, sample(1))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is fine")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, sample(1)))
		require.NoError(t, store.Save(ctx, id2, sample(1)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
