package office

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/floor/model"
	"github.com/viant/floor/service/meta"
)

func newService(t *testing.T) *Service {
	baseURL, err := filepath.Abs("testdata")
	require.NoError(t, err)
	env := map[string]string{"IO_WORKERS": "3", "ORDERS_DSN": "mem://orders"}
	return New(WithMetaService(meta.New(afs.New(), baseURL, meta.WithEnv(func(key string) string { return env[key] }))))
}

func TestService_LoadYAML(t *testing.T) {
	office, err := newService(t).Load(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", office.Name)
	require.NotNil(t, office.Source)
	assert.Equal(t, "orders.yaml", office.Source.URL)
	require.Len(t, office.Teams, 2)
	assert.Equal(t, 3, office.Teams[0].Workers)
	assert.Equal(t, model.TeamDedicated, office.Teams[1].Kind)

	db, ok := office.ManagedObject("db")
	require.True(t, ok)
	assert.Equal(t, model.ScopeThread, db.Scope)
	assert.Equal(t, 2*time.Second, db.TimeoutDuration())
	assert.Equal(t, "mem://orders", db.Properties["dsn"])
	require.NotNil(t, db.Pool)
	assert.Equal(t, 4, db.Pool.Max)

	receive, ok := office.Function("receive")
	require.True(t, ok)
	store, _ := office.Function("store")
	assert.Equal(t, store.Index, receive.NextIndex)
	link, ok := receive.FlowLink("notify")
	require.True(t, ok)
	assert.True(t, link.Spawn)
	assert.Equal(t, []int{db.Index}, store.ObjectIndices)
	require.Len(t, store.Pre, 1)
	assert.Equal(t, []int{0}, store.Pre[0].GovernanceIndices)
	assert.Len(t, office.ThreadEscalations, 1)
}

func TestService_LoadTOML(t *testing.T) {
	office, err := newService(t).Load(context.Background(), "minimal.toml")
	require.NoError(t, err)
	assert.Equal(t, "minimal", office.Name)
	ping, ok := office.Function("ping")
	require.True(t, ok)
	assert.Equal(t, 0, ping.TeamIndex)
	assert.Len(t, office.Escalations, 1)
}

func TestService_LoadErrors(t *testing.T) {
	srv := newService(t)
	var testCases = []struct {
		description string
		URL         string
	}{
		{description: "missing document", URL: "absent.yaml"},
		{description: "unresolved next", URL: "broken.yaml"},
	}
	for _, testCase := range testCases {
		_, err := srv.Load(context.Background(), testCase.URL)
		assert.Error(t, err, testCase.description)
	}
}

func TestService_DecodeYAML(t *testing.T) {
	office, err := New().DecodeYAML([]byte("name: inline\nfunctions:\n  - name: a\n"))
	require.NoError(t, err)
	assert.Equal(t, "inline", office.Name)
	require.Len(t, office.Functions, 1)
}
