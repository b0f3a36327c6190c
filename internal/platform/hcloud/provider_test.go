package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/facets/internal/platform/cloud"
)

var successAction = schema.Action{ID: 1, Status: "success", Progress: 100}

func gibbonServer(id int64, name string) schema.Server {
	return schema.Server{
		ID:     id,
		Name:   name,
		Status: "running",
		Labels: map[string]string{"cluster": "gibbon", "facet": "web", "index": "0"},
		PublicNet: schema.ServerPublicNet{
			IPv4: schema.ServerPublicNetIPv4{IP: "203.0.113.10"},
		},
		ServerType: schema.ServerType{ID: 1, Name: "cx22"},
		Datacenter: &schema.Datacenter{ID: 1, Name: "fsn1-dc14", Location: schema.Location{ID: 1, Name: "fsn1"}},
		Protection: schema.ServerProtection{Delete: true, Rebuild: true},
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()
	p := NewProvider("token")

	got := p.NormalizeTags(map[string]string{
		"Name":        "gibbon-web-0",
		"device":      "/dev/sdf",
		"mount_point": "/data/",
		"owner":       "ops@example.com",
		"long":        strings.Repeat("a", 62) + "--b",
	})
	assert.Equal(t, "gibbon-web-0", got["Name"])
	assert.Equal(t, "dev_sdf", got["device"])
	assert.Equal(t, "data", got["mount_point"])
	assert.Equal(t, "ops_example.com", got["owner"])
	assert.Equal(t, strings.Repeat("a", 62), got["long"], "truncation trims the dangling separator")
	assert.Nil(t, p.NormalizeTags(nil))
}

func TestInstanceState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status hcloud.ServerStatus
		want   cloud.InstanceState
	}{
		{hcloud.ServerStatusRunning, cloud.StateRunning},
		{hcloud.ServerStatusInitializing, cloud.StatePending},
		{hcloud.ServerStatusStarting, cloud.StatePending},
		{hcloud.ServerStatusStopping, cloud.StateStopping},
		{hcloud.ServerStatusOff, cloud.StateStopped},
		{hcloud.ServerStatusDeleting, cloud.StateShuttingDown},
		{hcloud.ServerStatus("weird"), cloud.StateUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, instanceState(tt.status))
		})
	}
}

func TestListInstances(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("GET /servers", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerListResponse{
			Servers: []schema.Server{gibbonServer(7, "gibbon-web-0")},
		})
	})

	instances, err := ts.provider().ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)

	inst := instances[0]
	assert.Equal(t, "7", inst.ID)
	assert.Equal(t, "gibbon-web-0", inst.Name)
	assert.Equal(t, cloud.StateRunning, inst.State)
	assert.Equal(t, "cx22", inst.Flavor)
	assert.Equal(t, "fsn1", inst.Zone)
	assert.Equal(t, "203.0.113.10", inst.PublicIP)
	assert.True(t, inst.Protected)
	assert.Equal(t, "gibbon", inst.Tags["cluster"])
}

func TestGetInstance_NotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("GET /servers/42", func(w http.ResponseWriter, _ *http.Request) {
		notFoundResponse(w)
	})

	_, err := ts.provider().GetInstance(context.Background(), "42")
	assert.True(t, cloud.IsNotFound(err), "got %v", err)

	_, err = ts.provider().GetInstance(context.Background(), "i-abc")
	assert.True(t, cloud.IsNotFound(err), "malformed ids cannot exist")
}

func TestDestroyInstance(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var deleted atomic.Int32
	ts.handleFunc("GET /servers/42", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: gibbonServer(42, "gibbon-web-0")})
	})
	ts.handleFunc("DELETE /servers/42", func(w http.ResponseWriter, _ *http.Request) {
		deleted.Add(1)
		jsonResponse(w, http.StatusOK, schema.ServerDeleteResponse{Action: successAction})
	})

	require.NoError(t, ts.provider().DestroyInstance(context.Background(), "42"))
	assert.Equal(t, int32(1), deleted.Load())
}

func TestDestroyInstance_Missing(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("GET /servers/42", func(w http.ResponseWriter, _ *http.Request) {
		notFoundResponse(w)
	})
	ts.handleFunc("GET /servers", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerListResponse{Servers: []schema.Server{}})
	})

	assert.NoError(t, ts.provider().DestroyInstance(context.Background(), "42"))
}

func TestCreateTags_MergesLabels(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var sent map[string]string
	ts.handleFunc("GET /servers/7", func(w http.ResponseWriter, _ *http.Request) {
		srv := gibbonServer(7, "gibbon-web-0")
		srv.Labels["keep"] = "yes"
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: srv})
	})
	ts.handleFunc("PUT /servers/7", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Labels map[string]string `json:"labels"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		sent = body.Labels
		jsonResponse(w, http.StatusOK, schema.ServerUpdateResponse{Server: gibbonServer(7, "gibbon-web-0")})
	})

	err := ts.provider().CreateTags(context.Background(), cloud.InstanceRef("7"), map[string]string{"role": "web/frontend"})
	require.NoError(t, err)
	assert.Equal(t, "yes", sent["keep"])
	assert.Equal(t, "gibbon", sent["cluster"])
	assert.Equal(t, "web_frontend", sent["role"])
}

func TestEnsurePlacementGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		existing    []schema.PlacementGroup
		wantCreates int32
	}{
		{name: "exists", existing: []schema.PlacementGroup{{ID: 3, Name: "gibbon", Type: "spread"}}},
		{name: "created", existing: []schema.PlacementGroup{}, wantCreates: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			var creates atomic.Int32
			var gotType string
			ts.handleFunc("GET /placement_groups", func(w http.ResponseWriter, _ *http.Request) {
				jsonResponse(w, http.StatusOK, schema.PlacementGroupListResponse{PlacementGroups: tt.existing})
			})
			ts.handleFunc("POST /placement_groups", func(w http.ResponseWriter, r *http.Request) {
				creates.Add(1)
				var body struct {
					Type string `json:"type"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				gotType = body.Type
				jsonResponse(w, http.StatusCreated, map[string]any{
					"placement_group": schema.PlacementGroup{ID: 3, Name: "gibbon", Type: "spread"},
				})
			})

			require.NoError(t, ts.provider().EnsurePlacementGroup(context.Background(), "gibbon"))
			assert.Equal(t, tt.wantCreates, creates.Load())
			if tt.wantCreates > 0 {
				assert.Equal(t, "spread", gotType)
			}
		})
	}
}

func TestFirewallRules(t *testing.T) {
	t.Parallel()

	rules, err := firewallRules(cloud.SecurityGroupSpec{
		Name: "gibbon-web",
		Rules: []cloud.Rule{
			{Protocol: "tcp", FromPort: 80, ToPort: 80, CIDR: "0.0.0.0/0"},
			{Protocol: "tcp", FromPort: 8000, ToPort: 8100, CIDR: "10.0.0.0/8"},
			{Protocol: "icmp"},
			{Protocol: "tcp", FromPort: 22, ToPort: 22, Group: "gibbon-bastion"},
		},
	})
	require.NoError(t, err)
	require.Len(t, rules, 3, "group rules are skipped")

	assert.Equal(t, "80", *rules[0].Port)
	assert.Equal(t, "8000-8100", *rules[1].Port)
	assert.Equal(t, "10.0.0.0/8", rules[1].SourceIPs[0].String())
	assert.Equal(t, hcloud.FirewallRuleProtocolICMP, rules[2].Protocol)
	assert.Nil(t, rules[2].Port)
	assert.Len(t, rules[2].SourceIPs, 2, "no cidr means anywhere")

	_, err = firewallRules(cloud.SecurityGroupSpec{Name: "x", Rules: []cloud.Rule{{Protocol: "gre"}}})
	assert.ErrorContains(t, err, `unsupported protocol "gre"`)

	_, err = firewallRules(cloud.SecurityGroupSpec{Name: "x", Rules: []cloud.Rule{{Protocol: "tcp", FromPort: 1, CIDR: "nope"}}})
	assert.ErrorContains(t, err, "invalid cidr")
}

func TestAddresses(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var assigned atomic.Int32
	ts.handleFunc("GET /floating_ips", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.FloatingIPListResponse{FloatingIPs: []schema.FloatingIP{
			{ID: 1, IP: "198.51.100.1", Type: "ipv4", Server: hcloud.Ptr(int64(5))},
			{ID: 2, IP: "198.51.100.2", Type: "ipv4"},
		}})
	})
	ts.handleFunc("POST /floating_ips/2/actions/assign", func(w http.ResponseWriter, _ *http.Request) {
		assigned.Add(1)
		jsonResponse(w, http.StatusCreated, map[string]any{"action": successAction})
	})
	p := ts.provider()

	addrs, err := p.ListAddresses(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, cloud.Address{ID: "1", IP: "198.51.100.1", InstanceID: "5"}, *addrs[0])
	assert.Empty(t, addrs[1].InstanceID)

	require.NoError(t, p.AssociateAddress(context.Background(), "7", "198.51.100.2"))
	assert.Equal(t, int32(1), assigned.Load())

	err = p.AssociateAddress(context.Background(), "7", "198.51.100.9")
	assert.True(t, cloud.IsNotFound(err))
}

func TestCreateVolume_Unsupported(t *testing.T) {
	t.Parallel()
	p := NewProvider("token")

	_, err := p.CreateVolume(context.Background(), cloud.VolumeSpec{Name: "v", Size: 10, SnapshotID: "snap-1", Zone: "fsn1"})
	assert.ErrorIs(t, err, ErrSnapshotVolume)

	_, err = p.CreateVolume(context.Background(), cloud.VolumeSpec{Name: "v", Size: 10})
	assert.ErrorContains(t, err, "has no location")
}

// launchHandlers registers the lookups every server launch performs.
func launchHandlers(ts *testServer) {
	ts.handleFunc("GET /server_types", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"server_types": []map[string]any{{"id": 1, "name": "cx22", "architecture": "x86"}},
		})
	})
	ts.handleFunc("GET /images", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"images": []map[string]any{{"id": 1, "name": "ubuntu-24.04", "architecture": "x86", "type": "system", "status": "available"}},
		})
	})
	ts.handleFunc("GET /locations", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"locations": []map[string]any{{"id": 1, "name": "fsn1"}},
		})
	})
}

func launchSpec() cloud.LaunchSpec {
	return cloud.LaunchSpec{
		Name:     "gibbon-web-0",
		Image:    "ubuntu-24.04",
		Flavor:   "cx22",
		Zone:     "fsn1",
		UserData: `{"node_name":"gibbon-web-0"}`,
		Tags:     map[string]string{"cluster": "gibbon", "facet": "web", "index": "0", "Name": "gibbon-web-0"},
	}
}

func TestCreateInstance(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	launchHandlers(ts)

	var serverBody, volumeBody map[string]any
	ts.handleFunc("GET /servers", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerListResponse{Servers: []schema.Server{}})
	})
	ts.handleFunc("POST /servers", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&serverBody)
		srv := gibbonServer(9, "gibbon-web-0")
		srv.Status = "initializing"
		jsonResponse(w, http.StatusCreated, map[string]any{
			"server":       srv,
			"action":       successAction,
			"next_actions": []schema.Action{},
		})
	})
	ts.handleFunc("GET /volumes", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"volumes": []any{}})
	})
	ts.handleFunc("POST /volumes", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&volumeBody)
		jsonResponse(w, http.StatusCreated, map[string]any{
			"volume":       map[string]any{"id": 11, "name": "gibbon-web-0-sdf", "size": 10, "server": 9, "location": map[string]any{"id": 1, "name": "fsn1"}},
			"action":       successAction,
			"next_actions": []schema.Action{},
		})
	})

	spec := launchSpec()
	spec.BlockDevices = []cloud.BlockDevice{
		{Device: "/dev/sdb", VirtualName: "ephemeral0"},
		{Device: "/dev/sdf", Size: 10},
	}
	inst, err := ts.provider().CreateInstance(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, "9", inst.ID)
	assert.Equal(t, cloud.StatePending, inst.State)
	assert.Equal(t, "gibbon-web-0", serverBody["name"])
	assert.Equal(t, spec.UserData, serverBody["user_data"])

	require.NotNil(t, volumeBody, "sized block device becomes a volume")
	assert.Equal(t, "gibbon-web-0-sdf", volumeBody["name"])
	assert.EqualValues(t, 9, volumeBody["server"])
	labels, _ := volumeBody["labels"].(map[string]any)
	assert.Equal(t, "gibbon-web-0", labels["server"])
	assert.Equal(t, "dev_sdf", labels["device"])
}

func TestCreateInstance_ExistingServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cluster string
		wantErr string
	}{
		{name: "same cluster is reused", cluster: "gibbon"},
		{name: "other cluster is refused", cluster: "baboon", wantErr: "exists outside cluster gibbon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			launchHandlers(ts)
			var creates atomic.Int32
			ts.handleFunc("GET /servers", func(w http.ResponseWriter, _ *http.Request) {
				srv := gibbonServer(9, "gibbon-web-0")
				srv.Labels["cluster"] = tt.cluster
				jsonResponse(w, http.StatusOK, schema.ServerListResponse{Servers: []schema.Server{srv}})
			})
			ts.handleFunc("POST /servers", func(w http.ResponseWriter, _ *http.Request) {
				creates.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			})

			inst, err := ts.provider().CreateInstance(context.Background(), launchSpec())
			assert.Zero(t, creates.Load())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "9", inst.ID)
		})
	}
}
