package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/access"
)

const defaultLogLimit = 50

type accessApi struct {
	recorder access.Recorder
	logger   core.Logger
}

func registerAccessAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := accessApi{recorder: deps.Recorder, logger: deps.Logger}

	ag := g.Group("/access")

	// scan is called by RFID reader devices, which carry no JWT
	ag.POST("/scan", api.scan)

	lg := ag.Group("/logs", jwt, staffMiddleware())
	lg.GET("", api.queryRecent)
	lg.GET("/user/:id", api.queryByUser)
}

type (
	// ScanResponse is the success envelope returned to reader devices.
	// Embedding promotes the user/room/logEntry keys next to success.
	ScanResponse struct {
		access.ScanResult
		Success bool `json:"success"`
	}

	ScanErrorResponse struct {
		Error   string `json:"error"`
		Success bool   `json:"success"`
	}
)

func (api *accessApi) scan(ctx echo.Context) error {
	var req access.ScanRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ScanErrorResponse{Error: "invalid request body"})
	}

	res, err := api.recorder.Record(ctx.Request().Context(), req)
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			return echo.NewHTTPError(http.StatusBadRequest, ScanErrorResponse{Error: vErr.Error()})
		}
		if errors.Cause(err) == access.ErrUnknownCredential {
			return echo.NewHTTPError(http.StatusNotFound, ScanErrorResponse{Error: err.Error()})
		}
		// reader firmware expects the {error, success} envelope on server errors too
		api.logger.Error(fmt.Sprintf("recording scan: %v", err), err)
		return echo.NewHTTPError(http.StatusInternalServerError, ScanErrorResponse{Error: "Internal server error"})
	}

	return ctx.JSON(http.StatusOK, ScanResponse{ScanResult: res, Success: true})
}

func (api *accessApi) queryRecent(ctx echo.Context) error {
	limit := defaultLogLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "must be a non-negative integer"})
		}
		limit = n
	}

	events, err := api.recorder.QueryRecent(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "querying access logs")
	}
	if events == nil {
		events = []access.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *accessApi) queryByUser(ctx echo.Context) error {
	events, err := api.recorder.QueryByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying user access logs")
	}
	if events == nil {
		events = []access.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}
