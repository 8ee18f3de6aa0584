package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mid "github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/layout"
	"github.com/legitrack/relnet/backend/pkg/network"
	"github.com/legitrack/relnet/backend/pkg/store"
	"github.com/legitrack/relnet/backend/pkg/store/memory"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterKey = "test-master-key"

var hmacSecret = []byte("test-secret")

type failingStore struct{}

func (failingStore) Edges(context.Context, store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) EntitiesByIDs(context.Context, []string) ([]common.Entity, error) {
	return nil, errors.New("connection refused")
}

// countingStore counts every read that reaches the data layer.
type countingStore struct {
	*memory.Store
	reads atomic.Int32
}

func (s *countingStore) Edges(ctx context.Context, q store.EdgeQuery) ([]common.CooccurrenceEdge, error) {
	s.reads.Add(1)
	return s.Store.Edges(ctx, q)
}

func (s *countingStore) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	s.reads.Add(1)
	return s.Store.EntitiesByIDs(ctx, ids)
}

func seededStore() *memory.Store {
	s := memory.New()
	s.PutEntities(
		common.Entity{ID: "A", Name: "Acme", Type: common.EntityTypeOrganization},
		common.Entity{ID: "B", Name: "Bea", Type: common.EntityTypePerson},
		common.Entity{ID: "C", Name: "Council", Type: common.EntityTypeCommittee},
	)
	s.PutEdges(
		common.CooccurrenceEdge{EntityA: "A", EntityB: "B", SharedCases: 4, Jaccard: 0.5, Strength: 0.5},
		common.CooccurrenceEdge{EntityA: "C", EntityB: "A", SharedCases: 2, Jaccard: 0.3, Strength: 0.3},
	)
	return s
}

func newTestApp(edges store.CooccurrenceStore, catalog store.EntityCatalog) *mid.App {
	cfg := layout.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.MaxDuration = 40 * time.Millisecond

	return &mid.App{
		Network: network.NewService(edges, catalog, network.ServiceOptions{
			CacheTTL: time.Minute,
			Lookup:   store.LookupOptions{Retries: 1},
		}),
		Views: layout.NewRegistry(cfg),
		Keyfunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return hmacSecret, nil
		},
		MasterAPIKey:   masterKey,
		MasterUserID:   1,
		MasterUserRole: "admin",
	}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(hmacSecret)
	require.NoError(t, err)
	return token
}

func do(e *echo.Echo, method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := New(newTestApp(seededStore(), seededStore()))
	rec := do(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	t.Run("missing token", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/network", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 7}).SignedString([]byte("other"))
		require.NoError(t, err)
		rec := do(e, http.MethodGet, "/api/network", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing permission", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"id": "7", "role": "user", "permissions": []string{"other"}})
		rec := do(e, http.MethodGet, "/api/network", token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("view permission", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"id": 7, "permissions": []string{"network.view"}})
		rec := do(e, http.MethodGet, "/api/network", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(e, http.MethodPost, "/api/network/refresh", token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin gets all permissions", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"id": 8, "role": "admin"})
		rec := do(e, http.MethodPost, "/api/network/refresh", token, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("master key", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/network", masterKey, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuth_RejectedBeforeDataAccess(t *testing.T) {
	s := &countingStore{Store: seededStore()}
	e := New(newTestApp(s, s))
	forbidden := signToken(t, jwt.MapClaims{"id": 9, "permissions": []string{"other"}})

	cases := []struct {
		name, target, token string
		want                int
	}{
		{"network without token", "/api/network", "", http.StatusUnauthorized},
		{"neighbors without token", "/api/entities/A/neighbors", "", http.StatusUnauthorized},
		{"stream without token", "/api/network/layout/stream?view_id=v", "", http.StatusUnauthorized},
		{"network with bad token", "/api/network", "not-a-jwt", http.StatusUnauthorized},
		{"neighbors without permission", "/api/entities/A/neighbors", forbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodGet, tc.target, tc.token, "")
		assert.Equal(t, tc.want, rec.Code, tc.name)
	}
	assert.Equal(t, int32(0), s.reads.Load())

	rec := do(e, http.MethodGet, "/api/network", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, s.reads.Load())
}

func TestGetNetwork(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	rec := do(e, http.MethodGet, "/api/network?min_strength=0.4&max_nodes=100000", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var graph common.Subgraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, 0.5, graph.Edges[0].Weight)
	assert.Len(t, graph.Nodes, 2)
	for _, n := range graph.Nodes {
		assert.Equal(t, 1, n.Degree)
	}
}

func TestGetNetwork_EmptyResultEncodesArrays(t *testing.T) {
	s := memory.New()
	e := New(newTestApp(s, s))

	rec := do(e, http.MethodGet, "/api/network?center_entity_id=missing", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, rec.Body.String())
}

func TestGetNetwork_TypeFilter(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	rec := do(e, http.MethodGet, "/api/network?min_strength=0&entity_types=person,organization", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var graph common.Subgraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	for _, n := range graph.Nodes {
		assert.NotEqual(t, common.EntityTypeCommittee, n.Type)
	}
}

func TestGetNetwork_BadMinStrength(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	for _, v := range []string{"abc", "NaN", "Inf"} {
		rec := do(e, http.MethodGet, "/api/network?min_strength="+v, masterKey, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, v)
	}
}

func TestGetNetwork_UpstreamFailureIsRetryable(t *testing.T) {
	e := New(newTestApp(failingStore{}, failingStore{}))

	rec := do(e, http.MethodGet, "/api/network", masterKey, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])
}

func TestGetNeighbors(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	rec := do(e, http.MethodGet, "/api/entities/A/neighbors?limit=5", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var neighbors []common.NeighborRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &neighbors))
	require.Len(t, neighbors, 2)
	assert.Equal(t, "B", neighbors[0].ID)
	assert.Equal(t, "C", neighbors[1].ID)

	rec = do(e, http.MethodGet, "/api/entities/nobody/neighbors", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	s := seededStore()
	app := newTestApp(s, s)
	app.Limiter = mid.NewRateLimiter(0.001, 1)
	e := New(app)

	rec := do(e, http.MethodGet, "/api/network", masterKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/network", masterKey, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLayoutControl_UnknownView(t *testing.T) {
	s := seededStore()
	e := New(newTestApp(s, s))

	rec := do(e, http.MethodPost, "/api/network/layout/nope/freeze", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/network/layout/nope", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodDelete, "/api/network/layout/nope", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamLayout(t *testing.T) {
	s := seededStore()
	app := newTestApp(s, s)
	e := New(app)

	rec := do(e, http.MethodGet, "/api/network/layout/stream", masterKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/network/layout/stream?view_id=v1&min_strength=0&width=400&height=300", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: start\n"))
	assert.Contains(t, body, "event: tick\n")
	assert.Contains(t, body, "event: done\n")

	rec = do(e, http.MethodGet, "/api/network/layout/v1", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot struct {
		State string       `json:"state"`
		Frame layout.Frame `json:"frame"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, layout.StateStopped.String(), snapshot.State)
	assert.Len(t, snapshot.Frame.Positions, 3)

	rec = do(e, http.MethodPost, "/api/network/layout/v1/drag", masterKey, `{"node_id":"A","x":1,"y":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodDelete, "/api/network/layout/v1", masterKey, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, app.Views.Len())
}
