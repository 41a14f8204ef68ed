package ingestion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	httperr "github.com/khaledhawil/DevSecOps-Project/internal/core/errors"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

const (
	defaultPage = 0
	defaultSize = 10
	maxPageSize = 100

	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgTrackFailed    = "Failed to track event"
	msgDuplicateEvent = "Event already exists"
)

// RegisterRoutes registers the event tracking and query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/v1/events", s.TrackEventHandler)
	r.GET("/api/v1/events", s.ListEventsHandler)
	r.GET("/api/v1/events/:id", s.GetEventHandler)
	r.GET("/api/v1/events/user/:user_id", s.ListUserEventsHandler)
}

// TrackEventHandler handles POST /api/v1/events.
func (s *Service) TrackEventHandler(c *gin.Context) {
	input, ok := s.parseTrackInput(c)
	if !ok {
		return
	}

	evt, err := s.Track(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError, err.Error()))
		case errors.Is(err, storage.ErrDuplicate):
			slog.Info("Duplicate event rejected", "user_id", input.UserID)
			c.JSON(http.StatusConflict, v1.Error(httperr.CodeDuplicateEvent, msgDuplicateEvent))
		default:
			slog.Error("Failed to track event", "user_id", input.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError, msgTrackFailed))
		}
		return
	}

	c.JSON(http.StatusCreated, v1.OKMessage(evt, "Event tracked successfully"))
}

// GetEventHandler handles GET /api/v1/events/:id.
func (s *Service) GetEventHandler(c *gin.Context) {
	id := c.Param("id")

	evt, err := s.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, v1.Error(httperr.CodeNotFound,
				"Event not found with id: "+id))
			return
		}

		slog.Error("Failed to get event", "event_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve event"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(evt))
}

// ListUserEventsHandler handles GET /api/v1/events/user/:user_id?page&size.
func (s *Service) ListUserEventsHandler(c *gin.Context) {
	page, size, ok := parsePageParams(c)
	if !ok {
		return
	}
	userID := c.Param("user_id")

	events, total, err := s.store.ListEventsByUser(c.Request.Context(), userID, page, size)
	if err != nil {
		slog.Error("Failed to list user events", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve events"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(eventPage(events, page, size, total)))
}

// ListEventsHandler handles GET /api/v1/events?page&size.
func (s *Service) ListEventsHandler(c *gin.Context) {
	page, size, ok := parsePageParams(c)
	if !ok {
		return
	}

	events, total, err := s.store.ListEvents(c.Request.Context(), page, size)
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve events"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(eventPage(events, page, size, total)))
}

// parseTrackInput reads the bounded request body and binds it into a
// TrackEventInput. Enforcing the size limit before binding prevents
// unbounded reads from hostile clients.
func (s *Service) parseTrackInput(c *gin.Context) (v1.TrackEventInput, bool) {
	var input v1.TrackEventInput

	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError, msgReadBodyFailed))
		return input, false
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		c.JSON(http.StatusRequestEntityTooLarge, v1.Error(httperr.CodeValidationError,
			"Request body exceeds maximum allowed size"))
		return input, false
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(&input); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError, msgInvalidJSON))
		return input, false
	}

	return input, true
}

// parsePageParams parses page/size query parameters with defaults and caps.
func parsePageParams(c *gin.Context) (page, size int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError,
			"page must be a non-negative integer"))
		return 0, 0, false
	}

	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if err != nil || size < 1 || size > maxPageSize {
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError,
			"size must be an integer between 1 and "+strconv.Itoa(maxPageSize)))
		return 0, 0, false
	}

	return page, size, true
}

func eventPage(events []*v1.Event, page, size int, total int64) v1.EventPage {
	if events == nil {
		events = []*v1.Event{}
	}

	totalPages := int(total) / size
	if int(total)%size != 0 {
		totalPages++
	}

	return v1.EventPage{
		Events: events,
		Pagination: v1.Pagination{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}
