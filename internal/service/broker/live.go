package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"AOWI/internal/domain/models"
	"AOWI/internal/service/ratelimit"
	xhttp "AOWI/pkg/http"
	applogger "AOWI/pkg/logger"
)

const LiveName = "mt5"

// MetaTrader 5 trade request constants.
const (
	tradeActionDeal   = 1
	orderTypeBuy      = 0
	orderTypeSell     = 1
	orderTimeGTC      = 0
	orderFillingIOC   = 1
	tradeRetcodeDone  = 10009
	maxCommentLength  = 31
	defaultDeviation  = 10
	rateLimitedDetail = "rate limited"
)

// LiveConfig addresses an MT5 terminal bridge.
type LiveConfig struct {
	BaseURL            string
	Login              int64
	Password           string
	Server             string
	Timeout            time.Duration
	Deviation          int
	Magic              int64
	MaxOrdersPerSecond float64
	Burst              float64
}

// Live places orders through an HTTP bridge in front of an MT5 terminal.
type Live struct {
	cfg     LiveConfig
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger

	mu        sync.Mutex
	connected bool
}

type LiveOption func(*Live)

func WithLiveLogger(log *applogger.Logger) LiveOption {
	return func(l *Live) {
		if log != nil {
			l.log = log
		}
	}
}

// WithLimiter overrides the submit limiter.
func WithLimiter(r *ratelimit.Limiter) LiveOption {
	return func(l *Live) { l.limiter = r }
}

func NewLive(cfg LiveConfig, opts ...LiveOption) *Live {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Deviation <= 0 {
		cfg.Deviation = defaultDeviation
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.MaxOrdersPerSecond
	}
	l := &Live{
		cfg:     cfg,
		limiter: ratelimit.New(burst, cfg.MaxOrdersPerSecond),
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.client = xhttp.NewClient(xhttp.WithBaseURL(cfg.BaseURL), xhttp.WithTimeout(cfg.Timeout))
	l.log = l.log.With(applogger.String("adapter", LiveName))
	return l
}

type bridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeRequest struct {
	Login    int64  `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"`
}

type initializeResponse struct {
	OK    bool         `json:"ok"`
	Error *bridgeError `json:"error,omitempty"`
}

type tickResponse struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
	Volume float64 `json:"volume"`
}

type orderSendRequest struct {
	Action      int     `json:"action"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        int     `json:"type"`
	Price       float64 `json:"price"`
	Deviation   int     `json:"deviation"`
	Magic       int64   `json:"magic"`
	Comment     string  `json:"comment"`
	TypeTime    int     `json:"type_time"`
	TypeFilling int     `json:"type_filling"`
}

type orderSendResponse struct {
	Retcode int     `json:"retcode"`
	Order   uint64  `json:"order"`
	Deal    uint64  `json:"deal"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

func (l *Live) Name() string { return LiveName }

func (l *Live) IsLive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Connect initializes the terminal session.
func (l *Live) Connect(ctx context.Context) error {
	if l.cfg.BaseURL == "" {
		return errors.New("bridge base url is not configured")
	}
	var resp initializeResponse
	err := l.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		Path:   "/initialize",
		Body:   initializeRequest{Login: l.cfg.Login, Password: l.cfg.Password, Server: l.cfg.Server},
	}, &resp)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if !resp.OK {
		if resp.Error != nil {
			return fmt.Errorf("initialize: %w", &models.SubmitFailure{Code: resp.Error.Code, Message: resp.Error.Message})
		}
		return errors.New("initialize: terminal refused session")
	}

	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	l.log.Info("terminal session initialized", applogger.String("server", l.cfg.Server))
	return nil
}

func (l *Live) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var tick tickResponse
	err := l.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		Path:        "/symbol_info_tick",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &tick)
	if err != nil {
		return models.Quote{}, fmt.Errorf("symbol_info_tick %s: %w", symbol, err)
	}
	q := models.Quote{Bid: tick.Bid, Ask: tick.Ask, Volume: tick.Volume, Time: time.Unix(tick.Time, 0).UTC()}
	if !q.Valid() {
		return models.Quote{}, fmt.Errorf("symbol_info_tick %s: invalid quote %.5f/%.5f", symbol, tick.Bid, tick.Ask)
	}
	return q, nil
}

// Submit sends a market deal priced at the current tick.
func (l *Live) Submit(ctx context.Context, order models.Order) models.Result {
	if !l.IsLive() {
		return models.Failed(order, "terminal session not initialized")
	}
	if !l.limiter.Allow(order.Symbol) {
		return models.Failed(order, rateLimitedDetail)
	}

	q, err := l.Quote(ctx, order.Symbol)
	if err != nil {
		return models.Failed(order, err.Error())
	}

	req := orderSendRequest{
		Action:      tradeActionDeal,
		Symbol:      order.Symbol,
		Volume:      order.Volume.InexactFloat64(),
		Type:        orderTypeBuy,
		Price:       q.Ask,
		Deviation:   l.cfg.Deviation,
		Magic:       l.cfg.Magic,
		Comment:     truncate(order.Comment, maxCommentLength),
		TypeTime:    orderTimeGTC,
		TypeFilling: orderFillingIOC,
	}
	if order.Side == models.SideSell {
		req.Type = orderTypeSell
		req.Price = q.Bid
	}

	var resp orderSendResponse
	err = l.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		Path:   "/order_send",
		Body:   req,
	}, &resp)
	if err != nil {
		return models.Failed(order, fmt.Sprintf("order_send: %v", err))
	}
	if resp.Retcode != tradeRetcodeDone {
		return models.Failed(order, (&models.SubmitFailure{Code: resp.Retcode, Message: resp.Comment}).Error())
	}

	price := resp.Price
	if price == 0 {
		price = req.Price
	}
	return models.Accepted(order, strconv.FormatUint(resp.Order, 10), price)
}

// Disconnect shuts the terminal session down. It is a no-op when never connected.
func (l *Live) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	was := l.connected
	l.connected = false
	l.mu.Unlock()
	if !was {
		return nil
	}
	if err := l.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodPost, Path: "/shutdown"}, nil); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
