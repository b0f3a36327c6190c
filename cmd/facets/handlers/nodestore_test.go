package handlers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/facets/internal/platform/nodestore"
)

func TestParseNodeStore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   string
		want    NodeStoreSpec
		wantErr bool
	}{
		{value: "", want: NodeStoreSpec{Kind: NodeStoreBolt, Path: "facets.db"}},
		{value: "memory", want: NodeStoreSpec{Kind: NodeStoreMemory}},
		{value: "bolt:/var/lib/facets/nodes.db", want: NodeStoreSpec{Kind: NodeStoreBolt, Path: "/var/lib/facets/nodes.db"}},
		{value: "s3://ops-state", want: NodeStoreSpec{Kind: NodeStoreS3, Bucket: "ops-state"}},
		{value: "s3://ops-state/facets/prod/", want: NodeStoreSpec{Kind: NodeStoreS3, Bucket: "ops-state", Prefix: "facets/prod"}},
		{value: "bolt:", wantErr: true},
		{value: "s3://", wantErr: true},
		{value: "chef-server", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			got, err := ParseNodeStore(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeStoreSpec_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "memory", NodeStoreSpec{Kind: NodeStoreMemory}.String())
	assert.Equal(t, "bolt:facets.db", NodeStoreSpec{Kind: NodeStoreBolt, Path: "facets.db"}.String())
	assert.Equal(t, "s3://b", NodeStoreSpec{Kind: NodeStoreS3, Bucket: "b"}.String())
	assert.Equal(t, "s3://b/p", NodeStoreSpec{Kind: NodeStoreS3, Bucket: "b", Prefix: "p"}.String())
}

func TestNodeStoreSpec_Credentials(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NodeStoreSpec{Kind: NodeStoreBolt, Path: "x"}.credentials())
	assert.Equal(t, map[string]any{
		"node_store": map[string]any{"bucket": "b", "prefix": "p"},
	}, NodeStoreSpec{Kind: NodeStoreS3, Bucket: "b", Prefix: "p"}.credentials())
}

func TestOpenNodeStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		store, closeFn, err := OpenNodeStore(ctx, NodeStoreSpec{Kind: NodeStoreMemory})
		require.NoError(t, err)
		assert.IsType(t, &nodestore.MemoryStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("bolt", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nodes.db")
		store, closeFn, err := OpenNodeStore(ctx, NodeStoreSpec{Kind: NodeStoreBolt, Path: path})
		require.NoError(t, err)
		require.NoError(t, store.SaveNode(ctx, &nodestore.Node{Name: "gibbon-web-0", Cluster: "gibbon"}))
		assert.NoError(t, closeFn())
		assert.FileExists(t, path)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, _, err := OpenNodeStore(ctx, NodeStoreSpec{Kind: "chef"})
		assert.Error(t, err)
	})
}

func TestS3OptionsFromEnv(t *testing.T) {
	t.Setenv("FACETS_S3_ENDPOINT", "https://fsn1.your-objectstorage.com")
	t.Setenv("FACETS_S3_REGION", "fsn1")
	t.Setenv("FACETS_S3_ACCESS_KEY", "ak")
	t.Setenv("FACETS_S3_SECRET_KEY", "sk")
	t.Setenv("FACETS_S3_PATH_STYLE", "true")

	opts := S3OptionsFromEnv()
	assert.Equal(t, "https://fsn1.your-objectstorage.com", opts.Endpoint)
	assert.Equal(t, "fsn1", opts.Region)
	assert.Equal(t, "ak", opts.AccessKey)
	assert.Equal(t, "sk", opts.SecretKey)
	assert.True(t, opts.PathStyle)
}

type fakeBuckets struct {
	exists  bool
	err     error
	created []string
}

func (f *fakeBuckets) BucketExists(context.Context, string) (bool, error) { return f.exists, f.err }

func (f *fakeBuckets) CreateBucket(_ context.Context, bucket string) error {
	f.created = append(f.created, bucket)
	return nil
}

func TestEnsureBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	missing := &fakeBuckets{}
	require.NoError(t, ensureBucket(ctx, missing, "ops-state"))
	assert.Equal(t, []string{"ops-state"}, missing.created)

	present := &fakeBuckets{exists: true}
	require.NoError(t, ensureBucket(ctx, present, "ops-state"))
	assert.Empty(t, present.created)

	failing := &fakeBuckets{err: assert.AnError}
	assert.ErrorIs(t, ensureBucket(ctx, failing, "ops-state"), assert.AnError)
	assert.Empty(t, failing.created)
}
