package api

import (
	"net/http"
	"time"

	"AOWI/internal/domain/models"
	"AOWI/internal/service/ratelimit"
	"AOWI/internal/usecase"
	xhttp "AOWI/pkg/http"
	xlogger "AOWI/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// DispatchReader is the read side of a dispatch run.
type DispatchReader interface {
	Status() models.DispatchStatus
	Outcomes() *usecase.OutcomeLog
}

// DispatchEchoHandler serves run status and outcomes.
type DispatchEchoHandler struct {
	logger       *xlogger.Logger
	run          DispatchReader
	rl           *ratelimit.Limiter
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

type HandlerOption func(*DispatchEchoHandler)

// WithPingInterval sets how often stream clients are pinged.
func WithPingInterval(d time.Duration) HandlerOption {
	return func(h *DispatchEchoHandler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithRequestLimit caps requests per remote address.
func WithRequestLimit(burst, perSecond float64) HandlerOption {
	return func(h *DispatchEchoHandler) { h.rl = ratelimit.New(burst, perSecond) }
}

func NewDispatchEchoHandler(logger *xlogger.Logger, run DispatchReader, opts ...HandlerOption) *DispatchEchoHandler {
	h := &DispatchEchoHandler{
		logger:       logger,
		run:          run,
		rl:           ratelimit.New(0, 0),
		pingInterval: 15 * time.Second,
		writeTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *DispatchEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/outcomes", h.Outcomes)
	g.GET("/outcomes/stream", h.Stream)
}

func (h *DispatchEchoHandler) allow(c echo.Context) bool {
	return h.rl.Allow(c.RealIP() + ":" + c.Path())
}

func (h *DispatchEchoHandler) Status(c echo.Context) error {
	if !h.allow(c) {
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError())
	}
	return xhttp.SuccessResponse(c, h.run.Status())
}

func (h *DispatchEchoHandler) Outcomes(c echo.Context) error {
	if !h.allow(c) {
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError())
	}
	req := &models.OutcomesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.run.Outcomes().Filter(models.Status(req.Status), req.Symbol, req.Limit)
	if rows == nil {
		rows = []models.Result{}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Stream pushes every new result to a websocket client as JSON.
func (h *DispatchEchoHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("outcome stream upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	results, cancel := h.run.Outcomes().Subscribe(64)
	defer cancel()

	// the read loop only notices client close frames
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("outcome stream opened", xlogger.String("remote", c.RealIP()))
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case r, ok := <-results:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(r); err != nil {
				h.logger.Debug("outcome stream write failed", xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return nil
			}
		}
	}
}
