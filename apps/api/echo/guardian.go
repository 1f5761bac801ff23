package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/guardian"
)

type guardianApi struct {
	*Server
}

func registerGuardianAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := guardianApi{Server: s}

	gg := g.Group("/guardians", jwt)
	gg.GET("", api.query, staffMiddleware())
	gg.POST("", api.create, adminMiddleware())
	gg.GET("/:id", api.retrieve, staffMiddleware())
	gg.PUT("/:id", api.update, adminMiddleware())
	gg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *guardianApi) query(ctx echo.Context) error {
	filter := new(guardian.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []guardian.Guardian{})
	}

	guardians, err := api.GuardianSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying guardians")
	}
	if guardians == nil {
		guardians = []guardian.Guardian{}
	}
	return ctx.JSON(http.StatusOK, guardians)
}

// create finds the guardian with the same email and phone or adds a new one.
func (api *guardianApi) create(ctx echo.Context) error {
	var data guardian.Descriptor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Descriptor")
	}
	data.ID = ""
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	g, created, err := api.GuardianSvc.Resolve(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "resolving guardian")
	}
	if !created {
		return ctx.JSON(http.StatusOK, g)
	}

	api.record(ctx, fmt.Sprintf("Added guardian %s", g.Name))
	return ctx.JSON(http.StatusCreated, g)
}

func (api *guardianApi) retrieve(ctx echo.Context) error {
	g, err := api.GuardianSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding guardian by ID")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *guardianApi) update(ctx echo.Context) error {
	g, err := api.GuardianSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding guardian by ID")
	}

	var data guardian.UpdateGuardian
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGuardian")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	g, err = api.GuardianSvc.Update(ctx.Request().Context(), g, data)
	if err != nil {
		return errors.Wrap(err, "updating guardian")
	}

	api.record(ctx, fmt.Sprintf("Updated guardian %s", g.Name))
	return ctx.JSON(http.StatusOK, g)
}

func (api *guardianApi) destroy(ctx echo.Context) error {
	g, err := api.GuardianSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding guardian by ID")
	}
	if err = api.GuardianSvc.Delete(ctx.Request().Context(), g.ID); err != nil {
		return errors.Wrap(err, "deleting guardian")
	}

	api.record(ctx, fmt.Sprintf("Removed guardian %s", g.Name))
	return ctx.NoContent(http.StatusNoContent)
}
