package routes

import (
	"net/http"

	"github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/server/util"

	"github.com/labstack/echo/v4"
)

func GetNeighborsHandler(c echo.Context) error {
	type getNeighborsParams struct {
		EntityID string `param:"id" validate:"required,max=128"`
		Limit    int    `query:"limit"`
		ViewID   string `query:"view_id" validate:"max=128"`
	}

	params := new(getNeighborsParams)
	if err := c.Bind(params); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}

	app := c.(*middleware.AppContext).App
	neighbors, err := app.Network.Neighbors(c.Request().Context(), params.ViewID, params.EntityID, params.Limit)
	if err != nil {
		return util.QueryError(c, "GetNeighbors", err)
	}

	return c.JSON(http.StatusOK, neighbors)
}
