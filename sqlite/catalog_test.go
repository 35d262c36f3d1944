package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.CatalogStore {
	t.Helper()
	s, _ := newStoreDB(t)
	return s
}

func newStoreDB(t *testing.T) (*sqlite.CatalogStore, *sqlite.DB) {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return sqlite.NewCatalogStore(db), db
}

func price(v float64) *float64 { return &v }

func sampleBatch() *partcrawl.Batch {
	return &partcrawl.Batch{
		ApplianceType: partcrawl.Refrigerator,
		Models: []*partcrawl.Model{
			{ModelNumber: "A1", Name: "A1 Whirlpool Refrigerator", Brand: "Whirlpool", ApplianceType: partcrawl.Refrigerator},
			{ModelNumber: "A2", Name: "A2 Refrigerator", ApplianceType: partcrawl.Refrigerator},
		},
		Parts: []*partcrawl.Part{
			{PartNumber: "PS11752778", ManufacturerPartNumber: "WPW10321304", Name: "Door Shelf Bin", Price: price(44.95), Manufacturer: "Whirlpool", ApplianceType: partcrawl.Refrigerator},
			{PartNumber: "PS1", Name: "Unpriced Part", ApplianceType: partcrawl.Refrigerator},
		},
		Links: []partcrawl.ModelPartLink{
			{ModelNumber: "A1", PartNumber: "PS11752778"},
			{ModelNumber: "A2", PartNumber: "PS11752778"},
			{ModelNumber: "A1", PartNumber: "PS1"},
		},
	}
}

func TestCatalogStore_WriteBatch(t *testing.T) {
	t.Parallel()

	t.Run("writes models parts and links", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.WriteBatch(ctx, sampleBatch()))

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, partcrawl.Counts{Models: 2, Parts: 2, Links: 3}, counts)

		models, err := s.ModelsForPart(ctx, "PS11752778")
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, models)
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.WriteBatch(ctx, sampleBatch()))
		require.NoError(t, s.WriteBatch(ctx, sampleBatch()))

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, partcrawl.Counts{Models: 2, Parts: 2, Links: 3}, counts)
	})

	t.Run("first write wins", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, sampleBatch()))

		require.NoError(t, s.WriteBatch(ctx, &partcrawl.Batch{
			Parts: []*partcrawl.Part{{PartNumber: "PS1", Name: "Renamed", ApplianceType: partcrawl.Dishwasher}},
		}))

		p, err := s.FindPart(ctx, "PS1")
		require.NoError(t, err)
		assert.Equal(t, "Unpriced Part", p.Name)
		assert.Equal(t, partcrawl.Refrigerator, p.ApplianceType)
	})

	t.Run("stores nullable fields as NULL", func(t *testing.T) {
		t.Parallel()

		s, db := newStoreDB(t)
		ctx := context.Background()
		require.NoError(t, s.WriteBatch(ctx, sampleBatch()))

		p, err := s.FindPart(ctx, "ps1")
		require.NoError(t, err)
		assert.Nil(t, p.Price)
		assert.Empty(t, p.ManufacturerPartNumber)

		q, err := s.FindPart(ctx, "PS11752778")
		require.NoError(t, err)
		require.NotNil(t, q.Price)
		assert.InDelta(t, 44.95, *q.Price, 0.001)
		assert.Equal(t, "WPW10321304", q.ManufacturerPartNumber)

		var nulls int
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parts WHERE price IS NULL AND manufacturer_part_number IS NULL").Scan(&nulls)
		require.NoError(t, err)
		assert.Equal(t, 1, nulls)
	})

	t.Run("skips links whose rows are missing", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.WriteBatch(ctx, &partcrawl.Batch{
			Links: []partcrawl.ModelPartLink{{ModelNumber: "NOPE", PartNumber: "PS9"}},
		}))

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Zero(t, counts.Links)
	})

	t.Run("rejects negative price and rolls back the batch", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		ctx := context.Background()

		err := s.WriteBatch(ctx, &partcrawl.Batch{
			Models: []*partcrawl.Model{{ModelNumber: "A1", Name: "A1", ApplianceType: partcrawl.Refrigerator}},
			Parts:  []*partcrawl.Part{{PartNumber: "PS1", Name: "Bad", Price: price(-1), ApplianceType: partcrawl.Refrigerator}},
		})
		require.Error(t, err)

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, partcrawl.Counts{}, counts, "no partial batch is committed")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)
		require.NoError(t, s.WriteBatch(context.Background(), &partcrawl.Batch{}))
	})
}

func TestCatalogStore_FindModel(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteBatch(ctx, sampleBatch()))

	m, err := s.FindModel(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Whirlpool", m.Brand)
	assert.Equal(t, partcrawl.Refrigerator, m.ApplianceType)

	_, err = s.FindModel(ctx, "missing")
	assert.Equal(t, partcrawl.ENOTFOUND, partcrawl.ErrorCode(err))
}
