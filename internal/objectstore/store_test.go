package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKeyConvention(t *testing.T) {
	key := ArtifactKey("100", "pdf")
	assert.Regexp(t, `^100_[0-9a-f]{32}\.pdf$`, key)
	assert.NotEqual(t, key, ArtifactKey("100", "pdf"))
}

func TestStructuredPOKey(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 30, 15, 0, time.UTC)
	assert.Equal(t, "200_20240310_093015_po.json", StructuredPOKey("200", at))
}

func TestArtifactRef(t *testing.T) {
	assert.Equal(t, "s3://pos/100_ab.pdf", ArtifactRef("pos", "100_ab.pdf"))
}

func TestFSStoreRoundTrip(t *testing.T) {
	store := NewFSStore(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "pos", "100_ab.pdf", []byte("content"), "application/pdf"))

	got, err := store.Get(ctx, "pos", "100_ab.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), got)

	_, err = store.Get(ctx, "pos", "missing.pdf")
	assert.Error(t, err)
}
