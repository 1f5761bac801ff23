package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/subject"
)

type subjectApi struct {
	*Server
}

func registerSubjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := subjectApi{Server: s}

	sg := g.Group("/subjects", jwt)
	sg.GET("", api.query, staffMiddleware())
	sg.POST("", api.create, adminMiddleware())
	sg.GET("/:id", api.retrieve, staffMiddleware())
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *subjectApi) query(ctx echo.Context) error {
	filter := new(subject.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []subject.Subject{})
	}

	subjects, err := api.SubjectSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []subject.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *subjectApi) create(ctx echo.Context) error {
	var data subject.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	s, err := api.SubjectSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}

	api.record(ctx, fmt.Sprintf("Added subject %s (grade %s)", s.Name, s.Grade))
	return ctx.JSON(http.StatusCreated, s)
}

func (api *subjectApi) retrieve(ctx echo.Context) error {
	s, err := api.SubjectSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *subjectApi) update(ctx echo.Context) error {
	s, err := api.SubjectSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}

	var data subject.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	s, err = api.SubjectSvc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}

	api.record(ctx, fmt.Sprintf("Updated subject %s (grade %s)", s.Name, s.Grade))
	return ctx.JSON(http.StatusOK, s)
}

func (api *subjectApi) destroy(ctx echo.Context) error {
	s, err := api.SubjectSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}
	if err = api.SubjectSvc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting subject")
	}

	api.record(ctx, fmt.Sprintf("Removed subject %s (grade %s)", s.Name, s.Grade))
	return ctx.NoContent(http.StatusNoContent)
}
