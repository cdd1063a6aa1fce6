package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
	log core.Logger
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service, log core.Logger) {
	api := attendanceApi{svc: svc, log: log}

	// teacher-facing control surface
	sg := g.Group("/sessions", jwt, teacherMiddleware())
	sg.POST("", api.sessionCreate)
	sg.GET("/:id", api.sessionRetrieve)
	sg.POST("/:id/token", api.sessionIssueToken)
	sg.POST("/:id/end", api.sessionEnd)
	sg.GET("/:id/live", api.sessionLive)

	// student-facing check-in surface
	g.POST("/checkin", api.checkIn, jwt, studentMiddleware())
}

// Handlers

func (api *attendanceApi) sessionCreate(ctx echo.Context) error {
	data := new(attendance.NewSession)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}

	sess, err := api.svc.CreateSession(ctx.Request().Context(), caller, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *attendanceApi) sessionRetrieve(ctx echo.Context) error {
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.GetSession(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *attendanceApi) sessionIssueToken(ctx echo.Context) error {
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}
	token, err := api.svc.IssueToken(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *attendanceApi) sessionEnd(ctx echo.Context) error {
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.EndSession(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	data := new(attendance.CheckInRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.CheckIn(ctx.Request().Context(), caller, ctx.RealIP(), data.Token, data.Location)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
