package routes

import (
	"errors"
	"net/http"

	"github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/server/util"
	"github.com/legitrack/relnet/backend/pkg/layout"

	"github.com/labstack/echo/v4"
)

type viewParams struct {
	ViewID string `param:"view_id" validate:"required,max=128"`
}

// currentRun resolves the live run of the view named in the path. On failure
// the response is already written and returned as the error.
func currentRun(c echo.Context) (*layout.Run, error) {
	params := new(viewParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, params); err != nil {
		return nil, util.BadRequest(c, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return nil, util.BadRequest(c, "Invalid request params")
	}

	app := c.(*middleware.AppContext).App
	engine, ok := app.Views.Lookup(params.ViewID)
	if !ok {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "No layout for view"})
	}
	run := engine.Current()
	if run == nil {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "No layout for view"})
	}
	return run, nil
}

func runError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, layout.ErrRunStopped):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Layout run is stopped"})
	case errors.Is(err, layout.ErrUnknownNode):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown node"})
	case errors.Is(err, layout.ErrInvalidPosition):
		return util.BadRequest(c, "Position must be finite")
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func runStatus(c echo.Context, run *layout.Run) error {
	state, reason := run.State()
	return c.JSON(http.StatusOK, map[string]any{
		"run_id": run.ID(),
		"state":  state.String(),
		"reason": reason,
	})
}

func FreezeLayoutHandler(c echo.Context) error {
	run, err := currentRun(c)
	if run == nil {
		return err
	}
	if err := run.Freeze(); err != nil {
		return runError(c, err)
	}
	return runStatus(c, run)
}

func ResumeLayoutHandler(c echo.Context) error {
	run, err := currentRun(c)
	if run == nil {
		return err
	}
	if err := run.Resume(); err != nil {
		return runError(c, err)
	}
	return runStatus(c, run)
}

func DragNodeHandler(c echo.Context) error {
	type dragNodeBody struct {
		NodeID string   `json:"node_id" validate:"required,max=128"`
		X      *float64 `json:"x" validate:"required"`
		Y      *float64 `json:"y" validate:"required"`
	}

	run, err := currentRun(c)
	if run == nil {
		return err
	}
	body := new(dragNodeBody)
	if err := c.Bind(body); err != nil {
		return util.BadRequest(c, "Invalid request body")
	}
	if err := c.Validate(body); err != nil {
		return util.BadRequest(c, "Invalid request body")
	}

	if err := run.DragNode(body.NodeID, *body.X, *body.Y); err != nil {
		return runError(c, err)
	}
	return runStatus(c, run)
}

func ReleaseNodeHandler(c echo.Context) error {
	type releaseNodeBody struct {
		NodeID string `json:"node_id" validate:"required,max=128"`
	}

	run, err := currentRun(c)
	if run == nil {
		return err
	}
	body := new(releaseNodeBody)
	if err := c.Bind(body); err != nil {
		return util.BadRequest(c, "Invalid request body")
	}
	if err := c.Validate(body); err != nil {
		return util.BadRequest(c, "Invalid request body")
	}

	if err := run.ReleaseNode(body.NodeID); err != nil {
		return runError(c, err)
	}
	return runStatus(c, run)
}

// DeleteLayoutHandler tears the view down: its layout run is stopped and its
// in-flight query abandoned.
func DeleteLayoutHandler(c echo.Context) error {
	params := new(viewParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, params); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}

	app := c.(*middleware.AppContext).App
	app.Network.Cancel(params.ViewID)
	if !app.Views.Remove(params.ViewID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No layout for view"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RefreshNetworkHandler drops cached network results, for operators who
// rebuilt the table without a refresh notification.
func RefreshNetworkHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.Network.Invalidate()
	return c.NoContent(http.StatusNoContent)
}
