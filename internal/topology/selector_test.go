package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target  string
		want    Selector
		wantErr bool
	}{
		{target: "gibbon", want: Selector{Cluster: "gibbon"}},
		{target: "gibbon-worker", want: Selector{Cluster: "gibbon", Facet: "worker"}},
		{target: "gibbon-worker-2", want: Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{2}}},
		{target: "gibbon-worker-0..2,5", want: Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{0, 1, 2, 5}}},
		{target: "gibbon-worker-3,1,1", want: Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{1, 3}}},
		{target: "gibbon-data-node", want: Selector{Cluster: "gibbon", Facet: "data-node"}},
		{target: "gibbon-data-node-1", want: Selector{Cluster: "gibbon", Facet: "data-node", Indexes: []int{1}}},
		{target: "", wantErr: true},
		{target: "macaque-web", wantErr: true},
		{target: "gibbonx", wantErr: true},
		{target: "gibbon-worker-3..1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSelector("gibbon", tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gibbon", Selector{Cluster: "gibbon"}.String())
	assert.Equal(t, "gibbon-worker-0,2", Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{0, 2}}.String())
}

func TestCluster_Slice(t *testing.T) {
	t.Parallel()

	cluster, err := Build(gibbonDefinition(), nil)
	require.NoError(t, err)

	all, err := cluster.Slice(Selector{Cluster: "gibbon"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gibbon-master-0", "gibbon-worker-0", "gibbon-worker-1", "gibbon-worker-2"}, all.Fullnames())

	some, err := cluster.Slice(Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{0, 2, 7}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gibbon-worker-0", "gibbon-worker-2"}, some.Fullnames())

	_, err = cluster.Slice(Selector{Cluster: "gibbon", Facet: "worker", Indexes: []int{9}})
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = cluster.Slice(Selector{Cluster: "gibbon", Facet: "db"})
	assert.ErrorContains(t, err, `facet "db" is not declared`)
	assert.NotErrorIs(t, err, ErrEmptySelection)
}
