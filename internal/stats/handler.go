package stats

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	httperr "github.com/khaledhawil/DevSecOps-Project/internal/core/errors"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

// RegisterRoutes registers the statistics API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/v1/statistics/user/:user_id", s.GetUserStatisticsHandler)
	r.GET("/api/v1/statistics/daily", s.GetDailyStatisticsHandler)
	r.GET("/api/v1/statistics/range", s.GetDailyRangeHandler)
	r.GET("/api/v1/statistics/summary", s.GetSummaryHandler)
	r.POST("/api/v1/statistics/daily/rollup", s.RecomputeDailyHandler)
}

// GetUserStatisticsHandler handles GET /api/v1/statistics/user/:user_id.
func (s *Service) GetUserStatisticsHandler(c *gin.Context) {
	userID := c.Param("user_id")

	stats, err := s.UserStatistics(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, v1.Error(httperr.CodeNotFound,
				"Statistics not found for user: "+userID))
			return
		}

		slog.Error("Failed to get user statistics", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve statistics"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(stats))
}

// GetDailyStatisticsHandler handles GET /api/v1/statistics/daily?date&type.
// type defaults to "general".
func (s *Service) GetDailyStatisticsHandler(c *gin.Context) {
	date, ok := parseDateParam(c, "date", c.Query("date"))
	if !ok {
		return
	}
	statType := c.DefaultQuery("type", v1.StatTypeGeneral)

	stats, err := s.DailyStatistics(c.Request.Context(), date, statType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, v1.Error(httperr.CodeNotFound,
				"Statistics not found for date: "+date.Format(v1.DateFormat)))
			return
		}

		slog.Error("Failed to get daily statistics",
			"date", date.Format(v1.DateFormat), "type", statType, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve statistics"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(stats))
}

// GetDailyRangeHandler handles GET /api/v1/statistics/range?start&end.
func (s *Service) GetDailyRangeHandler(c *gin.Context) {
	start, ok := parseDateParam(c, "start", c.Query("start"))
	if !ok {
		return
	}
	end, ok := parseDateParam(c, "end", c.Query("end"))
	if !ok {
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError,
			"end must not be before start"))
		return
	}

	rows, err := s.DailyStatisticsRange(c.Request.Context(), start, end)
	if err != nil {
		slog.Error("Failed to get daily statistics range", "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve statistics"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(rows))
}

// GetSummaryHandler handles GET /api/v1/statistics/summary.
func (s *Service) GetSummaryHandler(c *gin.Context) {
	summary, err := s.Summary(c.Request.Context())
	if err != nil {
		slog.Error("Failed to get summary statistics", "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to retrieve statistics"))
		return
	}

	c.JSON(http.StatusOK, v1.OK(summary))
}

// RecomputeDailyHandler handles POST /api/v1/statistics/daily/rollup?date&type.
// It reruns the rollup for one (date, type) key, overwriting any drifted row.
func (s *Service) RecomputeDailyHandler(c *gin.Context) {
	date, ok := parseDateParam(c, "date", c.Query("date"))
	if !ok {
		return
	}
	statType := c.DefaultQuery("type", v1.StatTypeGeneral)

	stats, err := s.RecomputeDaily(c.Request.Context(), date, statType)
	if err != nil {
		slog.Error("On-demand rollup failed",
			"date", date.Format(v1.DateFormat), "type", statType, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error(httperr.CodeInternalError,
			"Failed to recompute daily statistics"))
		return
	}

	c.JSON(http.StatusOK, v1.OKMessage(stats, "Daily statistics recomputed"))
}

// parseDateParam parses a required YYYY-MM-DD query parameter, writing the
// 400 response itself when the value is missing or malformed.
func parseDateParam(c *gin.Context, name, value string) (time.Time, bool) {
	if value == "" {
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError,
			name+" query parameter is required (format "+v1.DateFormat+")"))
		return time.Time{}, false
	}

	date, err := time.ParseInLocation(v1.DateFormat, value, time.UTC)
	if err != nil {
		c.JSON(http.StatusBadRequest, v1.Error(httperr.CodeValidationError,
			"invalid "+name+" value: expected format "+v1.DateFormat))
		return time.Time{}, false
	}
	return date, true
}
