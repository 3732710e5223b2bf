package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RunService is what the handler needs from service.RunService.
type RunService interface {
	Trigger(ctx context.Context, stage domain.Stage) (*domain.StageReport, error)
	Last(ctx context.Context, stage domain.Stage) (*domain.StageReport, bool, error)
}

type RunHandler struct {
	service RunService
}

func NewRunHandler(service RunService) *RunHandler {
	return &RunHandler{service: service}
}

// TriggerStage returns a handler that runs stage synchronously and responds
// with its report. Failed stages still answer 200: the report carries the
// outcome.
func (h *RunHandler) TriggerStage(stage domain.Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.service.Trigger(c.Request.Context(), stage)
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			log.Error().Err(err).Str("stage", string(stage)).Msg("failed to trigger stage")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

// GetLast returns the latest report for the :stage path parameter.
func (h *RunHandler) GetLast(c *gin.Context) {
	stage, ok := domain.ParseStage(c.Param("stage"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage " + c.Param("stage")})
		return
	}

	report, found, err := h.service.Last(c.Request.Context(), stage)
	if err != nil {
		log.Error().Err(err).Str("stage", string(stage)).Msg("failed to read run status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run status"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded for stage " + string(stage)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
