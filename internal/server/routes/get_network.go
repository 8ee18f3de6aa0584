package routes

import (
	"net/http"

	"github.com/legitrack/relnet/backend/internal/server/middleware"
	"github.com/legitrack/relnet/backend/internal/server/util"

	"github.com/labstack/echo/v4"
)

func GetNetworkHandler(c echo.Context) error {
	query := new(networkQuery)
	if err := c.Bind(query); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	if err := c.Validate(query); err != nil {
		return util.BadRequest(c, "Invalid request params")
	}
	params, err := query.params()
	if err != nil {
		return util.BadRequest(c, err.Error())
	}

	app := c.(*middleware.AppContext).App
	graph, err := app.Network.Network(c.Request().Context(), query.ViewID, params)
	if err != nil {
		return util.QueryError(c, "GetNetwork", err)
	}

	return c.JSON(http.StatusOK, graph)
}
