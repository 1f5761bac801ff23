package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

type teacherApi struct {
	*Server
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := teacherApi{Server: s}

	tg := g.Group("/teachers", jwt)
	tg.GET("/dashboard", api.dashboard, teacherMiddleware())
	tg.GET("", api.query, staffMiddleware())
	tg.POST("", api.create, adminMiddleware())

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve, staffMiddleware())
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.PUT("/subjects/:subjectId", api.assignSubject, adminMiddleware())
	dg.DELETE("/subjects/:subjectId", api.unassignSubject, adminMiddleware())
}

type TeacherDashboard struct {
	Teacher  teacher.Teacher   `json:"teacher"`
	Students []student.Student `json:"students"`
}

// Handlers

func (api *teacherApi) query(ctx echo.Context) error {
	filter := new(teacher.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []teacher.Teacher{})
	}

	teachers, err := api.TeacherSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	t, err := api.TeacherSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}

	api.record(ctx, fmt.Sprintf("Added teacher %s", t.Name))
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, err := api.TeacherSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) update(ctx echo.Context) error {
	t, err := api.TeacherSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}

	var data teacher.UpdateTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	t, err = api.TeacherSvc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}

	api.record(ctx, fmt.Sprintf("Updated teacher %s", t.Name))
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	t, err := api.TeacherSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}
	if err = api.TeacherSvc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}

	api.record(ctx, fmt.Sprintf("Removed teacher %s", t.Name))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) assignSubject(ctx echo.Context) error {
	t, err := api.SubjectSvc.AssignTeacher(ctx.Request().Context(), ctx.Param("subjectId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "assigning subject")
	}

	api.record(ctx, fmt.Sprintf("Assigned a subject to teacher %s", t.Name))
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) unassignSubject(ctx echo.Context) error {
	t, err := api.SubjectSvc.UnassignTeacher(ctx.Request().Context(), ctx.Param("subjectId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unassigning subject")
	}

	api.record(ctx, fmt.Sprintf("Unassigned a subject from teacher %s", t.Name))
	return ctx.JSON(http.StatusOK, t)
}

// dashboard shows a teacher their record and the students they teach.
func (api *teacherApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	t, err := api.TeacherSvc.GetByEmail(ctx.Request().Context(), claims.Email)
	if err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding teacher by email")
	}

	students, err := api.StudentSvc.Query(ctx.Request().Context(), &student.QueryFilter{TeacherID: t.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying teacher students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, TeacherDashboard{Teacher: t, Students: students})
}
