package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/rulegraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type structValidator struct {
	v *validator.Validate
}

func (s *structValidator) Validate(i any) error {
	return s.v.Struct(i)
}

// chainBuilder serves C <- B <- A for every campaign, or a two node cycle
// when cyclic is set.
type chainBuilder struct {
	mu       sync.Mutex
	builds   int
	cyclic   bool
	buildErr error
}

func (b *chainBuilder) BuildGraphForCampaign(context.Context, string, string) (*graph.Graph, error) {
	b.mu.Lock()
	b.builds++
	b.mu.Unlock()
	if b.buildErr != nil {
		return nil, b.buildErr
	}

	g := graph.New()
	for _, id := range []string{"A", "B", "C"} {
		g.AddNode(graph.Node{ID: "VARIABLE:" + id, Type: graph.NodeVariable, EntityID: id, Label: id})
	}
	edges := []graph.Edge{
		{FromID: "VARIABLE:A", ToID: "VARIABLE:B", Type: graph.EdgeDependsOn},
		{FromID: "VARIABLE:B", ToID: "VARIABLE:C", Type: graph.EdgeDependsOn},
	}
	if b.cyclic {
		edges = append(edges, graph.Edge{FromID: "VARIABLE:C", ToID: "VARIABLE:A", Type: graph.EdgeDependsOn})
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (b *chainBuilder) UpdateGraphForCondition(context.Context, *graph.Graph, string) error {
	return nil
}

func (b *chainBuilder) UpdateGraphForVariable(context.Context, *graph.Graph, string) error {
	return nil
}

func (b *chainBuilder) UpdateGraphForEffect(context.Context, *graph.Graph, string, string) error {
	return nil
}

func (b *chainBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

// memberAccess grants access to campaign "c1" for user "u1" only.
type memberAccess struct{}

func (memberAccess) HasCampaignAccess(_ context.Context, campaignID, userID string) (bool, error) {
	return campaignID == "c1" && userID == "u1", nil
}

type testServer struct {
	e       *echo.Echo
	builder *chainBuilder
	// user is attached to every request.
	user *middleware.AppUser
}

func newTestServer(t *testing.T, user *middleware.AppUser) *testServer {
	t.Helper()
	b := &chainBuilder{}
	graphs, err := service.New(service.Params{Builder: b, Access: memberAccess{}})
	require.NoError(t, err)

	s := &testServer{builder: b, user: user}
	e := echo.New()
	e.Validator = &structValidator{v: validator.New()}
	e.Use(middleware.AppContextMiddleware(&middleware.App{Graphs: graphs}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.(*middleware.AppContext).User = s.user
			return next(c)
		}
	})

	g := e.Group("/campaigns/:campaign_id/graph")
	g.GET("", GetGraphHandler)
	g.GET("/nodes/:node_id/dependencies", GetNodeDependenciesHandler)
	g.GET("/nodes/:node_id/dependents", GetNodeDependentsHandler)
	g.GET("/cycles", GetGraphCyclesHandler)
	g.GET("/order", GetEvaluationOrderHandler)
	g.POST("/invalidate", InvalidateGraphHandler)

	s.e = e
	return s
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

var member = &middleware.AppUser{UserID: "u1", Role: "user"}

func TestGetGraphHandler(t *testing.T) {
	s := newTestServer(t, member)

	rec := s.do(http.MethodGet, "/campaigns/c1/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[graphResponse](t, rec)
	assert.Equal(t, "c1", res.CampaignID)
	assert.Equal(t, "main", res.BranchID)
	assert.Equal(t, 3, res.NodeCount)
	assert.Equal(t, 2, res.EdgeCount)
	assert.Len(t, res.Nodes, 3)
	assert.Len(t, res.Edges, 2)

	rec = s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", decode[graphResponse](t, rec).BranchID)
	assert.Equal(t, 2, s.builder.buildCount())
}

func TestGetGraphHandler_Errors(t *testing.T) {
	t.Run("no access", func(t *testing.T) {
		s := newTestServer(t, member)
		rec := s.do(http.MethodGet, "/campaigns/other/graph", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Campaign not found", decode[map[string]string](t, rec)["error"])
		assert.Zero(t, s.builder.buildCount())
	})

	t.Run("admin skips access check", func(t *testing.T) {
		s := newTestServer(t, &middleware.AppUser{UserID: "root", Role: service.RoleAdmin})
		rec := s.do(http.MethodGet, "/campaigns/other/graph", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("build failure", func(t *testing.T) {
		s := newTestServer(t, member)
		s.builder.buildErr = errors.New("db down")
		rec := s.do(http.MethodGet, "/campaigns/c1/graph", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", decode[map[string]string](t, rec)["error"])
	})

	t.Run("no user", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := s.do(http.MethodGet, "/campaigns/c1/graph", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestNodeNeighbourHandlers(t *testing.T) {
	s := newTestServer(t, member)

	rec := s.do(http.MethodGet, "/campaigns/c1/graph/nodes/VARIABLE:B/dependencies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	deps := decode[nodesResponse](t, rec)
	assert.Equal(t, "VARIABLE:B", deps.NodeID)
	require.Len(t, deps.Nodes, 1)
	assert.Equal(t, "VARIABLE:C", deps.Nodes[0].ID)

	rec = s.do(http.MethodGet, "/campaigns/c1/graph/nodes/VARIABLE:B/dependents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dependents := decode[nodesResponse](t, rec)
	require.Len(t, dependents.Nodes, 1)
	assert.Equal(t, "VARIABLE:A", dependents.Nodes[0].ID)

	rec = s.do(http.MethodGet, "/campaigns/c1/graph/nodes/VARIABLE:missing/dependents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[nodesResponse](t, rec).Nodes)
}

func TestInvalidateGraphHandler_RequiresCampaignAccess(t *testing.T) {
	s := newTestServer(t, member)
	s.do(http.MethodGet, "/campaigns/c1/graph", "")
	require.Equal(t, 1, s.builder.buildCount())

	s.user = &middleware.AppUser{UserID: "u2", Role: "user"}
	rec := s.do(http.MethodPost, "/campaigns/c1/graph/invalidate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.user = member
	s.do(http.MethodGet, "/campaigns/c1/graph", "")
	assert.Equal(t, 1, s.builder.buildCount())
}

func TestCyclesAndOrderHandlers(t *testing.T) {
	s := newTestServer(t, member)

	rec := s.do(http.MethodGet, "/campaigns/c1/graph/cycles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[graph.CycleDetectionResult](t, rec).HasCycles)

	rec = s.do(http.MethodGet, "/campaigns/c1/graph/order", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"VARIABLE:C", "VARIABLE:B", "VARIABLE:A"}, decode[map[string][]string](t, rec)["order"])

	s.builder.cyclic = true
	s.do(http.MethodPost, "/campaigns/c1/graph/invalidate", "")

	rec = s.do(http.MethodGet, "/campaigns/c1/graph/cycles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cycles := decode[graph.CycleDetectionResult](t, rec)
	assert.True(t, cycles.HasCycles)
	assert.Equal(t, 1, cycles.CycleCount)

	rec = s.do(http.MethodGet, "/campaigns/c1/graph/order", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]string](t, rec)["order"])
}

func TestInvalidateGraphHandler(t *testing.T) {
	s := newTestServer(t, member)

	s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
	s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
	require.Equal(t, 1, s.builder.buildCount())

	t.Run("branch in body", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/campaigns/c1/graph/invalidate", `{"branch":"draft"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
		assert.Equal(t, 2, s.builder.buildCount())
	})

	t.Run("branch in query", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/campaigns/c1/graph/invalidate?branch=draft", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
		assert.Equal(t, 3, s.builder.buildCount())
	})

	t.Run("campaign without access", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/campaigns/other/graph/invalidate", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Campaign not found", decode[map[string]string](t, rec)["error"])
	})

	t.Run("other branch untouched", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/campaigns/c1/graph/invalidate", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		s.do(http.MethodGet, "/campaigns/c1/graph?branch=draft", "")
		assert.Equal(t, 3, s.builder.buildCount())
	})
}
