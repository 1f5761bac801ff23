package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/teacher"
)

type reportApi struct {
	*Server
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := reportApi{Server: s}

	rg := g.Group("/reports", jwt)
	rg.POST("", api.create, adminMiddleware())
	rg.GET("/search", api.search)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update)
}

func (api *reportApi) create(ctx echo.Context) error {
	var data report.NewReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReport")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	r, err := api.ReportSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}

	api.record(ctx, fmt.Sprintf("Created report %q", r.Title))
	return ctx.JSON(http.StatusCreated, r)
}

func (api *reportApi) search(ctx echo.Context) error {
	reports, err := api.ReportSvc.Search(ctx.Request().Context(), ctx.QueryParam("query"))
	if err != nil {
		return errors.Wrap(err, "searching reports")
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	r, err := api.ReportSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding report by ID")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reportApi) update(ctx echo.Context) error {
	r, err := api.ReportSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding report by ID")
	}
	if err = api.checkAssignee(ctx, r); err != nil {
		return err
	}

	var data report.UpdateReport
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReport")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	r, err = api.ReportSvc.Update(ctx.Request().Context(), r, data)
	if err != nil {
		return errors.Wrap(err, "updating report")
	}

	api.record(ctx, fmt.Sprintf("Updated report %q (%s)", r.Title, r.Status))
	return ctx.JSON(http.StatusOK, r)
}

// checkAssignee lets admins and the teacher the report is assigned to through.
func (api *reportApi) checkAssignee(ctx echo.Context, r report.Report) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin {
		return nil
	}
	if !claims.IsTeacher || r.AssignedTo == "" {
		return errHttpForbidden
	}

	t, err := api.TeacherSvc.GetByEmail(ctx.Request().Context(), claims.Email)
	if err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return errHttpForbidden
		}
		return errors.Wrap(err, "finding teacher by email")
	}
	if t.ID != r.AssignedTo {
		return errHttpForbidden
	}
	return nil
}
