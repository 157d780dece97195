package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

func TestResume_EmptyStore(t *testing.T) {
	s := createTestStore(t)
	sess, err := s.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Snapshot.State.Len())
	assert.Empty(t, sess.Provenance)
	assert.Equal(t, int64(0), sess.LastSeq)
}

func TestCheckpointThenResume(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	clk := testutil.NewFixedClock(testutil.Epoch)

	log := provenance.New(provenance.WithClock(clk), provenance.WithIDGenerator(testutil.NewSequentialIDs("prov")))
	log.RecordUpdate(base+"m", createTestEntry("x", base+"m", day(0), 0, "").Changes, "UpdateLabel")
	clk.AdvanceDays(1)
	log.RecordUpdate(base+"p1", createTestEntry("y", base+"p1", day(0), 0, "").Changes, "UpdateLabel")

	st := createTestState(t, "book", "p1")
	snap, err := s.Checkpoint(ctx, st, log, clk)
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), snap.SavedAt)

	// A second checkpoint of the same session writes nothing new.
	_, err = s.Checkpoint(ctx, st, log, clk)
	require.NoError(t, err)
	count, err := s.CountProvenance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sess, err := s.Resume(ctx)
	require.NoError(t, err)
	fp, err := vault.Fingerprint(sess.Snapshot.State)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, fp)
	assert.Equal(t, log.ExportHistory(), sess.Provenance)
	assert.Equal(t, int64(2), sess.LastSeq)

	// Imported into a fresh log, new entries sort after the resumed ones.
	resumed := provenance.New(provenance.WithClock(clk), provenance.WithIDGenerator(testutil.NewSequentialIDs("next")))
	n, err := resumed.ImportHistory(sess.Provenance)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	e, ok := resumed.RecordUpdate(base+"m", createTestEntry("z", base+"m", day(0), 0, "").Changes, "UpdateLabel")
	require.True(t, ok)
	assert.Equal(t, int64(3), e.Seq)
}
