package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/queue"
)

// ListLimit caps GET /api/data.
const ListLimit = 100

const publishTimeout = 5 * time.Second

type listResp struct {
	Count  int            `json:"count"`
	Data   []model.Record `json:"data"`
	Region string         `json:"region"`
}

type createReq struct {
	Message *string `json:"message"`
}

type createResp struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
	Region  string `json:"region"`
	Status  string `json:"status"`
}

// ListData handles GET /api/data.  Reads are allowed on replicas too.
func (h *Handler) ListData(c echo.Context) error {
	ctx := c.Request().Context()
	sess, ok := h.open(ctx)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": connFailed})
	}
	defer h.release(sess)

	recs, err := sess.ListRecent(ctx, ListLimit)
	if err != nil {
		h.Log.Error("list records failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, listResp{Count: len(recs), Data: recs, Region: h.Cfg.Region})
}

// CreateData handles POST /api/data.  The replica gate is applied by the
// router, so by the time this runs the instance is a primary.  The body is
// validated before any connection is opened.
func (h *Handler) CreateData(c echo.Context) error {
	req, ok := decodeCreate(c.Request().Body)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message field is required"})
	}
	msg := model.TruncateMessage(*req.Message)

	ctx := c.Request().Context()
	sess, ok := h.open(ctx)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": connFailed})
	}
	defer h.release(sess)

	id, err := sess.Insert(ctx, msg, h.Cfg.Region)
	if err != nil {
		h.Log.Error("insert record failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	h.Metrics.RecordsCreated.WithLabelValues(h.Cfg.Region).Inc()
	h.publishCreated(ctx, id, msg)

	return c.JSON(http.StatusCreated, createResp{ID: id, Message: msg, Region: h.Cfg.Region, Status: "created"})
}

// decodeCreate accepts exactly one JSON object with a non-empty string
// message.  Anything after that object makes the body invalid.
func decodeCreate(body io.Reader) (createReq, bool) {
	var req createReq
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil || req.Message == nil || *req.Message == "" {
		return createReq{}, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return createReq{}, false
	}
	return req, true
}

// publishCreated is best effort: the row is already committed, so a broker
// failure must not change the response.
func (h *Handler) publishCreated(ctx context.Context, id uint64, msg string) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.RecordCreatedEvent{
		ID:          id,
		Message:     msg,
		Region:      h.Cfg.Region,
		PublishedAt: model.FormatTimestamp(h.Now()),
	}
	if err := h.Events.PublishRecordCreated(ctx, ev); err != nil {
		h.Metrics.EventPublishErrors.Inc()
		h.Log.Warn("publish record.created failed", zap.Uint64("id", id), zap.Error(err))
	}
}
