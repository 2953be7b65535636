package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/repository"
)

type replicationResp struct {
	IsReplica bool `json:"is_replica"`
	model.ReplicationStatus
	Region string `json:"region"`
}

// ReplicationStatus handles GET /api/replication-status.  Primaries answer
// 404 without touching MySQL.
func (h *Handler) ReplicationStatus(c echo.Context) error {
	if !h.Cfg.IsReplica {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "This endpoint is only available on replica instances"})
	}
	ctx := c.Request().Context()
	sess, ok := h.open(ctx)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": connFailed})
	}
	defer h.release(sess)

	st, err := sess.ReplicationStatus(ctx)
	switch {
	case errors.Is(err, repository.ErrNoReplicationStatus):
		return c.JSON(http.StatusOK, echo.Map{
			"is_replica": true,
			"status":     "No replication status found",
			"region":     h.Cfg.Region,
		})
	case err != nil:
		h.Log.Error("replication status failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, replicationResp{IsReplica: true, ReplicationStatus: st, Region: h.Cfg.Region})
}
