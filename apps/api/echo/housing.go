package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/occupeye/backend/core/housing"
)

type housingApi struct {
	svc      housing.Service
	validate *validator.Validate
}

func registerHousingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := housingApi{
		svc:      deps.HousingSvc,
		validate: deps.Validate,
	}

	dg := g.Group("/dorms", jwt)
	dg.GET("", api.queryDorms)
	dg.POST("", api.createDorm, adminMiddleware())
	dg.GET("/:id", api.retrieveDorm)
	dg.PUT("/:id", api.updateDorm, adminMiddleware())
	dg.DELETE("/:id", api.destroyDorm, adminMiddleware())
	dg.GET("/:id/rooms", api.queryDormRooms)

	rg := g.Group("/rooms", jwt)
	rg.GET("", api.queryRooms)
	rg.POST("", api.createRoom, adminMiddleware())
	rg.GET("/:id", api.retrieveRoom)
	rg.PUT("/:id", api.updateRoom, adminMiddleware())
	rg.DELETE("/:id", api.destroyRoom, adminMiddleware())
}

// Dorm handlers

func (api *housingApi) queryDorms(ctx echo.Context) error {
	dorms, err := api.svc.QueryAllDorms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying dorms")
	}
	if dorms == nil {
		dorms = []housing.Dorm{}
	}
	return ctx.JSON(http.StatusOK, dorms)
}

func (api *housingApi) createDorm(ctx echo.Context) error {
	var data housing.NewDorm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDorm")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	dorm, err := api.svc.CreateDorm(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating dorm")
	}
	return ctx.JSON(http.StatusCreated, dorm)
}

func (api *housingApi) retrieveDorm(ctx echo.Context) error {
	dorm, err := api.svc.GetDormByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == housing.ErrDormNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding dorm by ID")
	}
	return ctx.JSON(http.StatusOK, dorm)
}

func (api *housingApi) updateDorm(ctx echo.Context) error {
	orig, err := api.svc.GetDormByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == housing.ErrDormNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding dorm by ID")
	}

	var data housing.UpdateDorm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDorm")
	}
	if err := data.Validate(orig, api.validate, api.svc); err != nil {
		return err
	}

	dorm, err := api.svc.UpdateDorm(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating dorm")
	}
	return ctx.JSON(http.StatusOK, dorm)
}

func (api *housingApi) destroyDorm(ctx echo.Context) error {
	if err := api.svc.DeleteDorms(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting dorm")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *housingApi) queryDormRooms(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.GetDormByID(reqCtx, ctx.Param("id")); err != nil {
		if errors.Cause(err) == housing.ErrDormNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding dorm by ID")
	}

	rooms, err := api.svc.QueryRoomsByDorm(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying dorm rooms")
	}
	if rooms == nil {
		rooms = []housing.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

// Room handlers

func (api *housingApi) queryRooms(ctx echo.Context) error {
	rooms, err := api.svc.QueryAllRooms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if rooms == nil {
		rooms = []housing.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *housingApi) createRoom(ctx echo.Context) error {
	var data housing.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	room, err := api.svc.CreateRoom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *housingApi) retrieveRoom(ctx echo.Context) error {
	room, err := api.svc.GetRoomByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == housing.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding room by ID")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *housingApi) updateRoom(ctx echo.Context) error {
	orig, err := api.svc.GetRoomByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == housing.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding room by ID")
	}

	var data housing.UpdateRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoom")
	}
	if err := data.Validate(orig, api.validate, api.svc); err != nil {
		return err
	}

	room, err := api.svc.UpdateRoom(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating room")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *housingApi) destroyRoom(ctx echo.Context) error {
	if err := api.svc.DeleteRooms(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return ctx.NoContent(http.StatusNoContent)
}
