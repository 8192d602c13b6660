package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/rulegraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/builder"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"

	"github.com/labstack/echo/v4"
)

type graphParams struct {
	CampaignID string `param:"campaign_id" validate:"required"`
	Branch     string `query:"branch" json:"branch"`
}

type nodeParams struct {
	CampaignID string `param:"campaign_id" validate:"required"`
	NodeID     string `param:"node_id" validate:"required"`
	Branch     string `query:"branch"`
}

type graphResponse struct {
	CampaignID string       `json:"campaignId"`
	BranchID   string       `json:"branchId"`
	Nodes      []graph.Node `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	NodeCount  int          `json:"nodeCount"`
	EdgeCount  int          `json:"edgeCount"`
}

type nodesResponse struct {
	NodeID string       `json:"nodeId"`
	Nodes  []graph.Node `json:"nodes"`
}

func branchOrDefault(branch string) string {
	if branch == "" {
		return builder.DefaultBranch
	}
	return branch
}

// bind reads and validates request params. The returned user is nil when
// a response has already been written.
func bind(c echo.Context, params any) (*middleware.AppUser, error) {
	if err := c.Bind(params); err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return nil, c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return user, nil
}

func graphError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Campaign not found"})
	}
	logger.Error("[Graph] Request failed", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func GetGraphHandler(c echo.Context) error {
	params := new(graphParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	g, err := graphs.GetGraph(c.Request().Context(), params.CampaignID, params.Branch, user.Caller())
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, graphResponse{
		CampaignID: params.CampaignID,
		BranchID:   branchOrDefault(params.Branch),
		Nodes:      g.GetAllNodes(),
		Edges:      g.GetAllEdges(),
		NodeCount:  g.GetNodeCount(),
		EdgeCount:  g.GetEdgeCount(),
	})
}

func GetNodeDependenciesHandler(c echo.Context) error {
	params := new(nodeParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	nodes, err := graphs.GetDependenciesOf(c.Request().Context(), params.CampaignID, params.Branch, params.NodeID, user.Caller())
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, nodesResponse{NodeID: params.NodeID, Nodes: nodes})
}

func GetNodeDependentsHandler(c echo.Context) error {
	params := new(nodeParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	nodes, err := graphs.GetDependents(c.Request().Context(), params.CampaignID, params.Branch, params.NodeID, user.Caller())
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, nodesResponse{NodeID: params.NodeID, Nodes: nodes})
}

func GetGraphCyclesHandler(c echo.Context) error {
	params := new(graphParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	res, err := graphs.ValidateNoCycles(c.Request().Context(), params.CampaignID, params.Branch, user.Caller())
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func GetEvaluationOrderHandler(c echo.Context) error {
	params := new(graphParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	order, err := graphs.GetEvaluationOrder(c.Request().Context(), params.CampaignID, params.Branch, user.Caller())
	if err != nil {
		return graphError(c, err)
	}

	return c.JSON(http.StatusOK, map[string][]string{"order": order})
}

// InvalidateGraphHandler accepts the branch in a JSON body or as a query
// parameter.
func InvalidateGraphHandler(c echo.Context) error {
	params := new(graphParams)
	user, err := bind(c, params)
	if user == nil {
		return err
	}
	if params.Branch == "" {
		params.Branch = c.QueryParam("branch")
	}

	graphs := c.(*middleware.AppContext).App.Graphs
	if err := graphs.Authorize(c.Request().Context(), params.CampaignID, user.Caller()); err != nil {
		return graphError(c, err)
	}
	graphs.InvalidateGraph(c.Request().Context(), params.CampaignID, params.Branch)

	return c.NoContent(http.StatusNoContent)
}
