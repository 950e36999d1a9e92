package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
	actorKey        = "actor"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidAction), errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

// requireActor rejects writes without an X-Actor-ID header
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerActorID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{Error: headerActorID + " header is required"})
			return
		}
		c.Set(actorKey, entity.Actor{ID: id, Role: c.GetHeader(headerActorRole)})
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	if v, found := c.Get(actorKey); found {
		if actor, isActor := v.(entity.Actor); isActor {
			return actor
		}
	}
	return entity.System
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseDate(c *gin.Context, field, value string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		fail(c, http.StatusBadRequest, field+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}
