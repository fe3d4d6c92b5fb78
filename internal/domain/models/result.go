package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the terminal state of a submitted order.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result is the outcome of one order. It is never changed after it enters the outcome log.
type Result struct {
	Order       Order     `json:"order"`
	Status      Status    `json:"status"`
	Ticket      string    `json:"ticket,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Adapter     string    `json:"adapter"`
	Live        bool      `json:"live"`
	Cycle       int       `json:"cycle"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Accepted builds an accepted result.
func Accepted(order Order, ticket string, price float64) Result {
	return Result{Order: order, Status: StatusAccepted, Ticket: ticket, Price: price}
}

// Rejected builds a result for an order the risk guard refused.
func Rejected(order Order, reason RejectReason) Result {
	return Result{Order: order, Status: StatusRejected, ErrorDetail: string(reason)}
}

// Failed builds a result for an order the broker did not execute.
func Failed(order Order, detail string) Result {
	return Result{Order: order, Status: StatusFailed, ErrorDetail: detail}
}

// Conflict resolutions.
const (
	ConflictDropped  = "dropped"
	ConflictKeptBuy  = "kept_buy"
	ConflictKeptSell = "kept_sell"
	ConflictNetted   = "netted"
)

// Conflict records opposing intents on one symbol within a cycle.
type Conflict struct {
	Symbol     string          `json:"symbol"`
	BuyVolume  decimal.Decimal `json:"buy_volume"`
	SellVolume decimal.Decimal `json:"sell_volume"`
	Resolution string          `json:"resolution"`
	Discarded  []Intent        `json:"discarded,omitempty"`
}

// DispatchStatus is a point-in-time view of a dispatch run.
type DispatchStatus struct {
	RunID           string         `json:"run_id"`
	State           string         `json:"state"`
	Adapter         string         `json:"adapter,omitempty"`
	Live            bool           `json:"live"`
	CyclesCompleted int            `json:"cycles_completed"`
	Outcomes        map[Status]int `json:"outcomes"`
}
