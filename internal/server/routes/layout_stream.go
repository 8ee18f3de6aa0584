package routes

import (
	"net/http"

	"github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/server/util"
	"github.com/legitrack/relnet/backend/pkg/common"
	"github.com/legitrack/relnet/backend/pkg/layout"
	"github.com/legitrack/relnet/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type layoutStreamQuery struct {
	networkQuery
	Width  float64 `query:"width" validate:"gte=0,lte=100000"`
	Height float64 `query:"height" validate:"gte=0,lte=100000"`
}

type layoutStart struct {
	RunID  string          `json:"run_id"`
	ViewID string          `json:"view_id"`
	Graph  common.Subgraph `json:"graph"`
	Bounds layout.Bounds   `json:"bounds"`
}

// frameMailbox holds the newest undelivered frame. A slow client skips
// intermediate frames instead of stalling the simulation; the final frame is
// never replaced because nothing follows it.
type frameMailbox chan layout.Frame

func (m frameMailbox) put(f layout.Frame) {
	for {
		select {
		case m <- f:
			return
		default:
		}
		select {
		case <-m:
		default:
		}
	}
}

// StreamLayoutHandler selects the subgraph, starts a layout run for the view
// and streams its frames as server-sent events. Starting a stream for a view
// supersedes the view's previous stream.
func StreamLayoutHandler(c echo.Context) error {
	query := new(layoutStreamQuery)
	if err := c.Bind(query); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	if err := c.Validate(query); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	if query.ViewID == "" {
		return util.BadRequest(c, "view_id is required")
	}
	params, err := query.params()
	if err != nil {
		return util.BadRequest(c, err.Error())
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	graph, err := app.Network.Network(ctx, query.ViewID, params)
	if err != nil {
		return util.QueryError(c, "StreamLayout", err)
	}

	frames := make(frameMailbox, 1)
	bounds := layout.Bounds{Width: query.Width, Height: query.Height}
	run := app.Views.Engine(query.ViewID).Start(graph, bounds, params.CenterEntityID, frames.put)

	util.StartSSE(c)
	if err := util.WriteSSEEvent(c, "start", layoutStart{
		RunID:  run.ID(),
		ViewID: query.ViewID,
		Graph:  graph,
		Bounds: bounds,
	}); err != nil {
		run.Stop()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			run.Stop()
			logger.Debug("[Server][StreamLayout] Client disconnected", "view", query.ViewID, "run", run.ID())
			return nil
		case f := <-frames:
			if done, err := writeFrame(c, f); done || err != nil {
				if err != nil {
					run.Stop()
				}
				return nil
			}
		case <-run.Done():
			select {
			case f := <-frames:
				if done, err := writeFrame(c, f); done || err != nil {
					return nil
				}
			default:
			}
			_, reason := run.State()
			_ = util.WriteSSEEvent(c, stopEvent(reason), map[string]string{"run_id": run.ID(), "reason": string(reason)})
			return nil
		}
	}
}

func writeFrame(c echo.Context, f layout.Frame) (bool, error) {
	if err := util.WriteSSEEvent(c, "tick", f); err != nil {
		return false, err
	}
	if !f.Final {
		return false, nil
	}
	return true, util.WriteSSEEvent(c, "done", map[string]string{"run_id": f.RunID, "reason": string(f.Reason)})
}

func stopEvent(reason layout.StopReason) string {
	switch reason {
	case layout.ReasonSuperseded:
		return "superseded"
	case layout.ReasonSettled:
		return "done"
	default:
		return "stopped"
	}
}

// GetLayoutHandler returns the latest positions of a view.
func GetLayoutHandler(c echo.Context) error {
	run, err := currentRun(c)
	if run == nil {
		return err
	}
	state, reason := run.State()
	return c.JSON(http.StatusOK, map[string]any{
		"state":  state.String(),
		"reason": reason,
		"frame":  run.Snapshot(),
	})
}
