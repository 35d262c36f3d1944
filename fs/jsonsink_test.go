package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: JSON mirror of admitted records
// Each appliance type gets one document, moved into place on Commit.

var fixedClock = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func refrigeratorBatch() *partcrawl.Batch {
	price := 44.95
	return &partcrawl.Batch{
		ApplianceType: partcrawl.Refrigerator,
		Models:        []*partcrawl.Model{{ModelNumber: "A1", Name: "A1", ApplianceType: partcrawl.Refrigerator}},
		Parts:         []*partcrawl.Part{{PartNumber: "PS1", Name: "Bin", Price: &price, ApplianceType: partcrawl.Refrigerator}},
		Links:         []partcrawl.ModelPartLink{{ModelNumber: "A1", PartNumber: "PS1"}},
	}
}

func TestJSONSink_WriteBatchHoldsRecordsUntilCommit(t *testing.T) {
	t.Parallel()

	// Given a sink targeting a directory
	dir := t.TempDir()
	sink := fs.NewJSONSink(dir, "run-1", []partcrawl.ApplianceType{partcrawl.Refrigerator})

	// When I write several batches
	require.NoError(t, sink.WriteBatch(context.Background(), refrigeratorBatch()))
	require.NoError(t, sink.WriteBatch(context.Background(), refrigeratorBatch()))

	// Then nothing is on disk yet
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "documents are written on commit")
}

func TestJSONSink_RejectedBatchIsNotCommitted(t *testing.T) {
	t.Parallel()

	// Given a sink holding one good batch
	dir := t.TempDir()
	sink := fs.NewJSONSink(dir, "run-1", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, sink.WriteBatch(context.Background(), refrigeratorBatch()))

	// When a batch with one invalid record is written
	err := sink.WriteBatch(context.Background(), &partcrawl.Batch{
		ApplianceType: partcrawl.Refrigerator,
		Models:        []*partcrawl.Model{{ModelNumber: "B1", ApplianceType: partcrawl.Refrigerator}},
		Parts:         []*partcrawl.Part{{PartNumber: "not-a-part", Name: "Bin", ApplianceType: partcrawl.Refrigerator}},
	})
	require.Equal(t, partcrawl.EINVALID, partcrawl.ErrorCode(err))
	require.NoError(t, sink.Commit())

	// Then none of its records reach the document
	doc, err := fs.ReadDocument(sink.Path(partcrawl.Refrigerator))
	require.NoError(t, err)
	require.Len(t, doc.Models, 1)
	assert.Equal(t, "A1", doc.Models[0].ModelNumber)
	assert.Len(t, doc.Parts, 1)
}

func TestJSONSink_FailedCommitKeepsPreviousDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Given a committed document from an earlier run
	first := fs.NewJSONSink(dir, "run-1", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, first.WriteBatch(context.Background(), refrigeratorBatch()))
	require.NoError(t, first.Commit())

	// And a temp path that cannot be written
	second := fs.NewJSONSink(dir, "run-2", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, os.Mkdir(second.Path(partcrawl.Refrigerator)+".tmp", 0755))

	// When the later run commits
	err := second.Commit()

	// Then the commit fails and the earlier document is unchanged
	require.Error(t, err)
	require.NoError(t, second.Abort())
	doc, err := fs.ReadDocument(second.Path(partcrawl.Refrigerator))
	require.NoError(t, err)
	assert.Equal(t, "run-1", doc.RunID)
}

func TestJSONSink_CommitMovesDocumentsIntoPlace(t *testing.T) {
	t.Parallel()

	// Given a sink with records for one of two types
	dir := t.TempDir()
	sink := fs.NewJSONSink(dir, "run-1", partcrawl.ApplianceTypes,
		fs.WithPrefix("partselect"), fs.WithClock(fixedClock))
	require.NoError(t, sink.WriteBatch(context.Background(), refrigeratorBatch()))

	// When I commit
	require.NoError(t, sink.Commit())

	// Then the refrigerator document holds the records
	doc, err := fs.ReadDocument(filepath.Join(dir, "partselect_refrigerator.json"))
	require.NoError(t, err)
	assert.Equal(t, partcrawl.Refrigerator, doc.ApplianceType)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, fixedClock(), doc.GeneratedAt)
	assert.NotEmpty(t, doc.ContentHash)
	require.Len(t, doc.Parts, 1)
	require.NotNil(t, doc.Parts[0].Price)
	assert.InDelta(t, 44.95, *doc.Parts[0].Price, 0.001)
	assert.Equal(t, []partcrawl.ModelPartLink{{ModelNumber: "A1", PartNumber: "PS1"}}, doc.Links)

	// And the dishwasher document exists but is empty
	empty, err := fs.ReadDocument(sink.Path(partcrawl.Dishwasher))
	require.NoError(t, err)
	assert.Empty(t, empty.Models)
	assert.NotNil(t, empty.Links)

	// And no temp files remain
	_, err = os.Stat(filepath.Join(dir, "partselect_refrigerator.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestJSONSink_ContentHashTracksRecords(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	a := fs.NewJSONSink(dirA, "run-a", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	b := fs.NewJSONSink(dirB, "run-b", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, a.WriteBatch(context.Background(), refrigeratorBatch()))
	require.NoError(t, b.WriteBatch(context.Background(), refrigeratorBatch()))
	require.NoError(t, a.Commit())
	require.NoError(t, b.Commit())

	docA, err := fs.ReadDocument(a.Path(partcrawl.Refrigerator))
	require.NoError(t, err)
	docB, err := fs.ReadDocument(b.Path(partcrawl.Refrigerator))
	require.NoError(t, err)

	assert.Equal(t, docA.ContentHash, docB.ContentHash, "same records, same hash")
}

func TestJSONSink_AbortKeepsPreviousDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Given a committed document from an earlier run
	first := fs.NewJSONSink(dir, "run-1", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, first.WriteBatch(context.Background(), refrigeratorBatch()))
	require.NoError(t, first.Commit())

	// When a later run writes and aborts
	second := fs.NewJSONSink(dir, "run-2", []partcrawl.ApplianceType{partcrawl.Refrigerator})
	require.NoError(t, second.WriteBatch(context.Background(), &partcrawl.Batch{
		ApplianceType: partcrawl.Refrigerator,
		Models:        []*partcrawl.Model{{ModelNumber: "B1", ApplianceType: partcrawl.Refrigerator}},
	}))
	require.NoError(t, second.Abort())

	// Then the earlier document is unchanged
	doc, err := fs.ReadDocument(filepath.Join(dir, "refrigerator.json"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", doc.RunID)
	_, err = os.Stat(filepath.Join(dir, "refrigerator.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestJSONSink_RejectsBatchWithoutType(t *testing.T) {
	t.Parallel()

	sink := fs.NewJSONSink(t.TempDir(), "run-1", nil)
	err := sink.WriteBatch(context.Background(), &partcrawl.Batch{
		Links: []partcrawl.ModelPartLink{{ModelNumber: "A1", PartNumber: "PS1"}},
	})

	assert.Equal(t, partcrawl.EINVALID, partcrawl.ErrorCode(err))
}
