package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
	"github.com/trezcool/shule/core/student"
	exportsvc "github.com/trezcool/shule/services/export"
)

const studentIDHeader = "X-Student-Id"

var errNoStudentID = core.NewValidationError(errors.New(studentIDHeader + " header is required"))

type studentApi struct {
	*Server
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := studentApi{Server: s}

	// groups with middlewares catch their whole prefix: create them before adding routes
	sg := g.Group("/students", jwt)
	rg := sg.Group("", staffMiddleware())
	dg := rg.Group("/:id", studentObjectMiddleware(api.StudentSvc))

	sg.POST("", api.enroll, adminMiddleware())
	sg.POST("/enroll", api.enroll, adminMiddleware())

	rg.GET("", api.query)
	rg.GET("/export", api.export)
	rg.GET("/grade/:grade", api.queryByGrade)
	rg.GET("/student", api.retrieveByStudentID)

	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PUT("/fee", api.updateFee, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *studentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}

	e, err := api.Enroller.Enroll(ctx.Request().Context(), data, actorName(ctx))
	if err != nil {
		return err
	}
	api.DashboardSvc.Invalidate(ctx.Request().Context())
	return ctx.JSON(http.StatusCreated, e.Student)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, student.OrderingFields)

	students, err := api.StudentSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) queryByGrade(ctx echo.Context) error {
	students, err := api.StudentSvc.QueryByGrade(ctx.Request().Context(), ctx.Param("grade"))
	if err != nil {
		return errors.Wrap(err, "querying students by grade")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieveByStudentID(ctx echo.Context) error {
	sid := core.CleanString(ctx.Request().Header.Get(studentIDHeader))
	if sid == "" {
		return errNoStudentID
	}
	s, err := api.StudentSvc.GetByStudentID(ctx.Request().Context(), sid)
	if err != nil {
		return errors.Wrap(err, "finding student by identifier")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) export(ctx echo.Context) error {
	grade := core.CleanString(ctx.QueryParam("grade"))
	students, err := api.StudentSvc.Query(ctx.Request().Context(), &student.QueryFilter{Grade: grade}, nil)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	guardians, err := api.GuardianSvc.Query(ctx.Request().Context(), nil)
	if err != nil {
		return errors.Wrap(err, "querying guardians")
	}
	names := make(map[string]string, len(guardians))
	for _, g := range guardians {
		names[g.ID] = g.Name
	}

	buf, err := exportsvc.Roster(students, func(id string) string { return names[id] })
	if err != nil {
		return errors.Wrap(err, "exporting roster")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", exportsvc.RosterFilename(grade)))
	return ctx.Blob(http.StatusOK, exportsvc.RosterContentType, buf.Bytes())
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	// fees are an admin matter
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.FeeAmount != nil && !claims.IsAdmin {
		return errHttpForbidden
	}

	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	s, err = api.StudentSvc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}

	api.record(ctx, fmt.Sprintf("Updated student %s (%s)", s.Name, s.StudentID))
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) updateFee(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateFee
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFee")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	s, err = api.StudentSvc.UpdateFee(ctx.Request().Context(), s, *data.FeeAmount)
	if err != nil {
		return errors.Wrap(err, "updating student fee")
	}

	api.record(ctx, fmt.Sprintf("Set fee of student %s (%s) to %s", s.Name, s.StudentID, s.FeeAmount.String()))
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, err := ctxStudent(ctx)
	if err != nil {
		return err
	}
	if err = api.StudentSvc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}

	api.record(ctx, fmt.Sprintf("Deleted student %s (%s)", s.Name, s.StudentID))
	return ctx.NoContent(http.StatusNoContent)
}

func ctxStudent(ctx echo.Context) (student.Student, error) {
	s, ok := ctx.Get("object").(student.Student)
	if !ok {
		return student.Student{}, errors.New("student object not found in echo.Context")
	}
	return s, nil
}

// studentObjectMiddleware loads the student of the `:id` path param into "object".
func studentObjectMiddleware(svc student.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set("object", s)
			return next(ctx)
		}
	}
}
