package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bluetask-api/domain"
)

const (
	// requestBodyMaxSize caps decoded JSON payloads.
	requestBodyMaxSize = 1 << 20

	// maxRegistryRetries bounds the ETag retry loop on profile writes.
	maxRegistryRetries = 5

	idempotencyKeyHeader = "Idempotency-Key"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, sweeps SweepSource, auth Authenticator, deduper Deduper, log *log.Logger) {
	e.GET("/api/tasks", getTasks(store, auth, log))
	e.POST("/api/tasks", postTask(store, auth, deduper))
	e.GET("/api/tasks/:id", getTask(store, auth))
	e.PUT("/api/tasks/:id", putTask(store, auth))
	e.POST("/api/tasks/:id/archive", archiveTask(store, auth))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth))
	e.GET("/api/labels", getLabels(store, auth))
	e.POST("/api/labels", postLabel(store, auth))
	e.DELETE("/api/labels/:title", deleteLabel(store, auth))
	e.GET("/api/profile", getProfile(store, auth))
	e.PUT("/api/profile/theme", putTheme(store, auth))
	e.GET("/healthz", healthz(store))

	initSweeper(sweeps, log)
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type labelsResponse struct {
	Labels []domain.Label `json:"labels"`
}

type labelRequest struct {
	Title string `json:"title"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func filterFromQuery(c echo.Context) (domain.Filter, error) {
	f := domain.Filter{
		OrderBy:  c.QueryParam("orderBy"),
		Status:   c.QueryParam("status"),
		Label:    c.QueryParam("label"),
		Priority: domain.PriorityNone,
	}
	if raw := strings.TrimSpace(c.QueryParam("priority")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, domain.ErrInvalidPriority
		}
		f.Priority = n
	}
	f = f.Normalize()
	return f, f.Validate()
}

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newTaskRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		ident, authErr := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		filter, filterErr := filterFromQuery(c)
		if filterErr != nil {
			metrics.SetErrorStage("invalid_filter")
			err = c.String(http.StatusBadRequest, filterErr.Error())
			return err
		}
		metrics.SetStatusFilter(filter.Status)
		metrics.SetLabelFiltered(filter.Label != "")

		fetchStart := time.Now()
		tasks, fetchErr := store.FetchTasks(ctx, ident.UserID, filter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		key := c.Request().Header.Get(idempotencyKeyHeader)
		if key != "" {
			added, dedupeErr := deduper.Add(ctx, ident.UserID, key)
			if dedupeErr != nil {
				c.Logger().Error(dedupeErr)
				return c.String(http.StatusInternalServerError, "dedupe check failed")
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		rollback := func() {
			if key == "" {
				return
			}
			if rerr := deduper.Remove(ctx, ident.UserID, key); rerr != nil {
				c.Logger().Errorf("dedupe rollback failed: %v", rerr)
			}
		}

		task, err := domain.NewTask(uuid.NewString(), fields, nextTimestamp())
		if err != nil {
			rollback()
			return c.String(http.StatusBadRequest, err.Error())
		}
		if err := store.InsertTask(ctx, ident.UserID, task); err != nil {
			rollback()
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create task")
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func getTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := store.GetTask(ctx, ident.UserID, c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if task == nil {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func putTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		task, err := store.GetTask(ctx, ident.UserID, c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if task == nil {
			return c.NoContent(http.StatusNotFound)
		}

		updated, err := domain.ApplyUpdate(*task, fields)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		if err := store.ReplaceTask(ctx, ident.UserID, updated); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update task")
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func archiveTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		task, err := store.GetTask(ctx, ident.UserID, c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if task == nil {
			return c.NoContent(http.StatusNotFound)
		}

		next := domain.ToggleArchive(task.Status)
		if err := store.SetTaskStatus(ctx, ident.UserID, task.ID, next); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to archive task")
		}
		task.Status = next
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		task, err := store.GetTask(ctx, ident.UserID, c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if task == nil {
			return c.NoContent(http.StatusNotFound)
		}

		if domain.DeleteIsPermanent(task.Status) {
			err = store.DeleteTask(ctx, ident.UserID, task.ID)
		} else {
			err = store.SetTaskStatus(ctx, ident.UserID, task.ID, domain.StatusDeleted)
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getLabels(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		profile, _, err := ensureProfile(ctx, store, ident, false)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, labelsResponse{Labels: profile.Labels})
	}
}

func postLabel(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req labelRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		for attempt := 0; attempt < maxRegistryRetries; attempt++ {
			profile, etag, err := ensureProfile(ctx, store, ident, true)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			if err := profile.AddLabel(req.Title); err != nil {
				switch {
				case errors.Is(err, domain.ErrTitleRequired):
					return c.String(http.StatusBadRequest, err.Error())
				case errors.Is(err, domain.ErrDuplicateLabel):
					return c.String(http.StatusConflict, err.Error())
				default:
					return c.String(http.StatusInternalServerError, err.Error())
				}
			}
			err = store.UpdateProfileLabels(ctx, ident.UserID, profile.Labels, etag)
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				continue
			}
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "failed to save label")
			}
			return c.JSON(http.StatusCreated, domain.Label{Title: req.Title, Icon: domain.DefaultLabelIcon})
		}
		return c.String(http.StatusConflict, "label registry is contended, retry")
	}
}

func deleteLabel(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		title := c.Param("title")
		for attempt := 0; attempt < maxRegistryRetries; attempt++ {
			profile, etag, err := ensureProfile(ctx, store, ident, true)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			if !profile.RemoveLabel(title) {
				return c.NoContent(http.StatusNotFound)
			}
			err = store.UpdateProfileLabels(ctx, ident.UserID, profile.Labels, etag)
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				continue
			}
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "failed to remove label")
			}

			// Task references are cleaned up asynchronously. The registry is
			// already consistent, so a failed enqueue only leaves stale label
			// strings on tasks.
			cmd := domain.SweepCommand{UserID: ident.UserID, Label: title, EnqueuedAt: nextTimestamp()}
			if err := store.EnqueueSweep(ctx, cmd); err != nil {
				c.Logger().Errorf("sweep enqueue failed, label: %s, err: %v", title, err)
			}
			return c.NoContent(http.StatusNoContent)
		}
		return c.String(http.StatusConflict, "label registry is contended, retry")
	}
}

func getProfile(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		profile, _, err := ensureProfile(ctx, store, ident, false)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, profile)
	}
}

func putTheme(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req themeRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Theme) == "" {
			return c.String(http.StatusBadRequest, "theme is required")
		}

		if _, _, err := ensureProfile(ctx, store, ident, false); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if err := store.UpdateProfileTheme(ctx, ident.UserID, req.Theme); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to update theme")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ensureProfile reads the caller's profile, provisioning one on first login.
// forUpdate routes the read past the cache so the returned ETag is usable for
// a guarded registry write. Provisioning races with concurrent first requests;
// losing the insert just means re-reading the winner's document.
func ensureProfile(ctx context.Context, store Storage, ident Identity, forUpdate bool) (domain.Profile, string, error) {
	read := store.GetProfile
	if forUpdate {
		read = store.GetProfileForUpdate
	}
	for attempt := 0; attempt < maxRegistryRetries; attempt++ {
		profile, etag, err := read(ctx, ident.UserID)
		if err != nil {
			return domain.Profile{}, "", err
		}
		if profile != nil {
			return *profile, etag, nil
		}
		fresh := domain.NewProfile(ident.Email, nextTimestamp())
		err = store.InsertProfile(ctx, ident.UserID, fresh)
		if err != nil && !errors.Is(err, domain.ErrConcurrencyConflict) {
			return domain.Profile{}, "", err
		}
	}
	return domain.Profile{}, "", domain.ErrConcurrencyConflict
}
