package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/model"
	"go-task-tracker/internal/queue"
	"go-task-tracker/pkg/apierror"
)

// TaskEventPublisher pushes a task lifecycle event to the broker.
// service.PublishTaskEvent in production, nil or a fake in tests; a nil
// publisher disables events entirely.
type TaskEventPublisher func(ctx context.Context, ev queue.TaskEvent) error

// TaskHandler serves the /tasks surface.
type TaskHandler struct {
	Tasks   TaskStore
	Publish TaskEventPublisher
}

func NewTaskHandler(t TaskStore, pub TaskEventPublisher) *TaskHandler {
	return &TaskHandler{Tasks: t, Publish: pub}
}

type createTaskReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	IsPublic    bool   `json:"isPublic"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// List returns the tasks visible to the caller.  The visibility rule
// is enforced in the repository query; nothing the client sends can
// widen the result set.
func (h *TaskHandler) List(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tasks, err := h.Tasks.ListVisible(ctx, p.UserID, p.IsAdmin())
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "list tasks failed")
	}
	return c.JSON(http.StatusOK, tasks)
}

// Create inserts a new task owned by the caller.  Title is required;
// priority defaults to medium; status always starts at pending.  The
// route is wrapped by the idempotency middleware, so a retried request
// carrying the same Idempotency-Key replays the original response
// instead of reaching this handler again.
func (h *TaskHandler) Create(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
	}
	var req createTaskReq
	if err := c.Bind(&req); err != nil {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "title is required")
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(req.Priority) {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid priority")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tasks.Create(ctx, model.Task{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Status:      model.StatusPending,
		Priority:    req.Priority,
		IsPublic:    req.IsPublic,
		OwnerID:     p.UserID,
	})
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "create task failed")
	}

	h.publish(queue.TaskEvent{
		Type:       queue.EventTaskCreated,
		TaskID:     t.ID,
		OwnerID:    t.OwnerID,
		ActorID:    p.UserID,
		Title:      t.Title,
		Status:     t.Status,
		Priority:   t.Priority,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, t)
}

// Get returns a single task.  The ABAC middleware has already loaded
// the snapshot and verified visibility.
func (h *TaskHandler) Get(c echo.Context) error {
	t, ok := middleware.TaskFromContext(c)
	if !ok {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "task snapshot missing")
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateStatus changes a task's status.  Any status may move to any
// other; the only guard is the owner-or-admin capability enforced by
// the ABAC middleware on the route.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	p, _ := middleware.CurrentPrincipal(c)
	t, ok := middleware.TaskFromContext(c)
	if !ok {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "task snapshot missing")
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid body")
	}
	if !model.ValidStatus(req.Status) {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid task status")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	updated, err := h.Tasks.UpdateStatus(ctx, t.ID, req.Status)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "update task failed")
	}

	h.publish(queue.TaskEvent{
		Type:       queue.EventTaskStatusChanged,
		TaskID:     updated.ID,
		OwnerID:    updated.OwnerID,
		ActorID:    p.UserID,
		Title:      updated.Title,
		Status:     updated.Status,
		Priority:   updated.Priority,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, updated)
}

// publish fires an event without blocking the response; publish errors
// are already logged inside the publisher and deliberately dropped.
func (h *TaskHandler) publish(ev queue.TaskEvent) {
	if h.Publish == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Publish(ctx, ev)
	}()
}
