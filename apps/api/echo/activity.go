package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/activity"
)

type activityApi struct {
	*Server
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := activityApi{Server: s}
	g.GET("/activities", api.query, jwt, adminMiddleware())
}

// query lists the latest activity logs, newest first.
func (api *activityApi) query(ctx echo.Context) error {
	logs, err := api.ActivitySvc.Recent(ctx.Request().Context(), bindLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "querying activity logs")
	}
	if logs == nil {
		logs = []activity.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}
