package echoapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tobias-barakaa/newschool-sub008/core"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

const persistWarning = "changes may not be saved"

// path params arrive escaped when the path holds reserved characters
var urlUnescape = url.PathUnescape

type timetableApi struct {
	svc      timetable.ServiceInterface
	logger   core.Logger
	validate *validator.Validate
}

func registerTimetableAPI(
	g *echo.Group,
	svc timetable.ServiceInterface,
	logger core.Logger,
	validate *validator.Validate,
) {
	api := timetableApi{
		svc:      svc,
		logger:   logger,
		validate: validate,
	}

	tg := g.Group("/timetable")
	tg.GET("", api.retrieve)
	tg.PATCH("", api.update)
	tg.PUT("/cells/:key", api.setCell)
	tg.DELETE("/cells/:key", api.clearCell)
	tg.POST("/reset", api.reset)
	tg.POST("/reload", api.reload)
	tg.POST("/sync", api.sync)
	tg.GET("/merged", api.merged)
	tg.GET("/conflicts", api.conflicts)
	tg.GET("/conflicts/count", api.conflictCount)
	tg.GET("/stats", api.stats)

	teachers := tg.Group("/teachers")
	teachers.GET("", api.teachers)
	teachers.PUT("", api.pinTeachers)
	teachers.GET("/:name", api.teacher)
}

// respond answers with data. A persistence failure only adds a warning: the change is applied in memory.
func (api *timetableApi) respond(ctx echo.Context, data interface{}, err error) error {
	if err != nil && !timetable.IsPersistError(err) {
		return err
	}
	env := Envelope{Data: data}
	if err != nil {
		api.logger.Warn("timetable change not persisted", err, map[string]interface{}{
			"requestId": ctx.Response().Header().Get(echo.HeaderXRequestID),
		})
		env.Warning = persistWarning
	}
	return ctx.JSON(http.StatusOK, env)
}

func cellKeyParam(ctx echo.Context) (timetable.CellKey, error) {
	raw, err := urlUnescape(ctx.Param("key"))
	if err != nil {
		return timetable.CellKey{}, core.NewFieldError("key", "malformed path")
	}
	key, err := timetable.ParseCellKey(raw)
	if err != nil {
		return timetable.CellKey{}, invalidCellKey("key", err)
	}
	return key, nil
}

// Handlers

func (api *timetableApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Envelope{Data: api.svc.State()})
}

func (api *timetableApi) update(ctx echo.Context) error {
	var data PatchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PatchRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	patch, err := data.Patch()
	if err != nil {
		return err
	}

	st, err := api.svc.UpdateMainTimetable(ctx.Request().Context(), patch)
	return api.respond(ctx, st, errors.Wrap(err, "updating timetable"))
}

func (api *timetableApi) setCell(ctx echo.Context) error {
	key, err := cellKeyParam(ctx)
	if err != nil {
		return err
	}
	var data CellRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CellRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.SetCell(ctx.Request().Context(), key, data.Assignment())
	return api.respond(ctx, st, errors.Wrap(err, "setting cell"))
}

func (api *timetableApi) clearCell(ctx echo.Context) error {
	key, err := cellKeyParam(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.ClearCell(ctx.Request().Context(), key)
	return api.respond(ctx, st, errors.Wrap(err, "clearing cell"))
}

func (api *timetableApi) reset(ctx echo.Context) error {
	st, err := api.svc.ResetTimetable(ctx.Request().Context())
	return api.respond(ctx, st, errors.Wrap(err, "resetting timetable"))
}

func (api *timetableApi) reload(ctx echo.Context) error {
	var force bool
	if raw := ctx.QueryParam("force"); raw != "" {
		var err error
		if force, err = strconv.ParseBool(raw); err != nil {
			return core.NewFieldError("force", "must be a boolean")
		}
	}

	var (
		st  timetable.State
		err error
	)
	if force {
		st, err = api.svc.ForceReloadMockData(ctx.Request().Context())
	} else {
		st, err = api.svc.LoadMockData(ctx.Request().Context())
	}
	return api.respond(ctx, st, errors.Wrap(err, "reloading timetable"))
}

func (api *timetableApi) sync(ctx echo.Context) error {
	view, err := api.svc.SyncTeacherTimetable(ctx.Request().Context())
	return api.respond(ctx, view, errors.Wrap(err, "syncing teacher timetable"))
}

func (api *timetableApi) merged(ctx echo.Context) error {
	grade := core.CleanString(ctx.QueryParam("grade"))
	if grade == "" {
		grade = api.svc.State().SelectedGrade
	}
	return ctx.JSON(http.StatusOK, Envelope{Data: api.svc.Merged(grade)})
}

func (api *timetableApi) conflicts(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Envelope{Data: api.svc.Conflicts()})
}

func (api *timetableApi) conflictCount(ctx echo.Context) error {
	var count int
	if teacher := core.CleanString(ctx.QueryParam("teacher")); teacher != "" {
		count = api.svc.TeacherConflictCount(teacher)
	} else {
		count = api.svc.ConflictCount()
	}
	return ctx.JSON(http.StatusOK, Envelope{Data: CountResponse{Count: count}})
}

func (api *timetableApi) stats(ctx echo.Context) error {
	grade := core.CleanString(ctx.QueryParam("grade"))
	return ctx.JSON(http.StatusOK, Envelope{Data: api.svc.Stats(grade)})
}

func (api *timetableApi) teachers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Envelope{Data: api.svc.TeacherTimetable()})
}

func (api *timetableApi) teacher(ctx echo.Context) error {
	name, err := urlUnescape(ctx.Param("name"))
	if err != nil {
		return errHttpNotFound
	}
	sched, ok := api.svc.TeacherTimetable().Timetable.Teachers[strings.TrimSpace(name)]
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, Envelope{Data: sched})
}

func (api *timetableApi) pinTeachers(ctx echo.Context) error {
	var data timetable.TeacherTimetable
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherTimetable")
	}
	if data.Teachers == nil {
		return core.NewFieldError("teachers", "this field is required")
	}

	view, err := api.svc.UpdateTeacherTimetable(ctx.Request().Context(), data)
	return api.respond(ctx, view, errors.Wrap(err, "pinning teacher timetable"))
}
