package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type taskRequest struct {
	Title       string       `json:"title" binding:"required,notblank,max=20"`
	Description string       `json:"description" binding:"required,notblank,max=255"`
	Priority    TaskPriority `json:"priority" binding:"required,oneof=LOW MEDIUM HIGH VERY_HIGH"`
	Status      TaskStatus   `json:"status" binding:"required,oneof=NOT_STARTED IN_PROGRESS COMPLETED"`
}

func (r taskRequest) apply(t *Task) {
	t.Title = r.Title
	t.Description = r.Description
	t.Priority = r.Priority
	t.Status = r.Status
}

// taskListQuery reads page/sort and the optional status filter.
func taskListQuery(c *gin.Context) (TaskFilter, PageRequest, bool) {
	var filter TaskFilter
	if raw := c.Query("status"); raw != "" {
		st, ok := ParseTaskStatus(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR",
				"status: invalid value, possible values: NOT_STARTED, IN_PROGRESS, COMPLETED")
			return filter, PageRequest{}, false
		}
		filter.Status = &st
	}
	pr, err := parsePageRequest(c.Query("page"), c.Query("per_page"), c.Query("sort"), TaskSortFields)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return filter, PageRequest{}, false
	}
	return filter, pr, true
}

func registerTaskRoutes(api *gin.RouterGroup, svc Services) {
	// All tasks across users; filters by status and title substring.
	api.GET("/tasks", AdminOnly(svc.Access), func(c *gin.Context) {
		filter, pr, ok := taskListQuery(c)
		if !ok {
			return
		}
		filter.TitleContains = c.Query("title")
		tasks, total, err := svc.Tasks.List(c.Request.Context(), filter, pr)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, pageResponse(tasks, total, pr))
	})

	api.GET("/users/:id/tasks", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, _, err := svc.Access.UserForAction(ctx, id); err != nil {
			respondDomainError(c, err)
			return
		}
		filter, pr, ok := taskListQuery(c)
		if !ok {
			return
		}
		filter.UserID = &id
		tasks, total, err := svc.Tasks.List(ctx, filter, pr)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, pageResponse(tasks, total, pr))
	})

	api.POST("/users/:id/tasks", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, _, err := svc.Access.UserForAction(ctx, id); err != nil {
			respondDomainError(c, err)
			return
		}
		var req taskRequest
		if !bindJSON(c, &req) {
			return
		}
		t := Task{UserID: id}
		req.apply(&t)
		created, err := svc.Tasks.Create(ctx, t)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	api.GET("/tasks/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		t, _, err := svc.Access.TaskForAction(c.Request.Context(), id)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	})

	api.PUT("/tasks/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		t, _, err := svc.Access.TaskForAction(ctx, id)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		var req taskRequest
		if !bindJSON(c, &req) {
			return
		}
		req.apply(t)
		updated, err := svc.Tasks.Update(ctx, *t)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/tasks/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, _, err := svc.Access.TaskForAction(ctx, id); err != nil {
			respondDomainError(c, err)
			return
		}
		if err := svc.Tasks.Delete(ctx, id); err != nil {
			respondDomainError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
