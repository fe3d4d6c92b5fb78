package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"AOWI/internal/domain/models"
	"AOWI/internal/domain/repository"
	pkgkafka "AOWI/pkg/kafka"
)

const (
	DefaultResultsTable = "aowi.dispatch_results"
	DefaultResultsTopic = "aowi.results"

	insertChunkSize = 2000
	resultColumns   = 13
)

// ResultSchema returns the DDL for the results table.
func ResultSchema(database, table string) []string {
	stmts := []string{}
	if database != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	recorded_at DateTime64(3, 'UTC'),
	run_id String,
	cycle UInt32,
	order_id String,
	symbol LowCardinality(String),
	side LowCardinality(String),
	volume Decimal(18, 8),
	status LowCardinality(String),
	ticket String,
	price Float64,
	error_detail String,
	adapter LowCardinality(String),
	strategies Array(String)
) ENGINE = MergeTree
ORDER BY (symbol, recorded_at)`, table))
	return stmts
}

// ClickHouseResultStore appends dispatch results to a MergeTree table.
type ClickHouseResultStore struct {
	db    *sql.DB
	table string
	runID string
}

func NewClickHouseResultStore(db *sql.DB, table, runID string) *ClickHouseResultStore {
	if table == "" {
		table = DefaultResultsTable
	}
	return &ClickHouseResultStore{db: db, table: table, runID: runID}
}

func (s *ClickHouseResultStore) Name() string { return "clickhouse" }

// Write inserts results using multi-row VALUES in chunks.
func (s *ClickHouseResultStore) Write(ctx context.Context, results []models.Result) error {
	for start := 0; start < len(results); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(results) {
			end = len(results)
		}
		q, args := buildResultInsert(s.table, s.runID, results[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", s.table, err)
		}
	}
	return nil
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseResultStore) Close() error { return nil }

func buildResultInsert(table, runID string, results []models.Result) (string, []interface{}) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", resultColumns), ", ") + ")"
	values := make([]string, 0, len(results))
	args := make([]interface{}, 0, len(results)*resultColumns)
	for _, r := range results {
		if r.Order.Symbol == "" {
			continue
		}
		values = append(values, placeholder)
		args = append(args,
			r.RecordedAt,
			runID,
			uint32(r.Cycle),
			r.Order.ID,
			r.Order.Symbol,
			string(r.Order.Side),
			r.Order.Volume,
			string(r.Status),
			r.Ticket,
			r.Price,
			r.ErrorDetail,
			r.Adapter,
			r.Order.Strategies(),
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (recorded_at, run_id, cycle, order_id, symbol, side, volume, status, ticket, price, error_detail, adapter, strategies) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

// BatchPublisher is the part of pkg/kafka.Producer the publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaResultPublisher publishes one message per result, keyed by symbol.
type KafkaResultPublisher struct {
	producer BatchPublisher
	topic    string
	runID    string
}

func NewKafkaResultPublisher(producer BatchPublisher, topic, runID string) *KafkaResultPublisher {
	if topic == "" {
		topic = DefaultResultsTopic
	}
	return &KafkaResultPublisher{producer: producer, topic: topic, runID: runID}
}

func (p *KafkaResultPublisher) Name() string { return "kafka" }

func (p *KafkaResultPublisher) Write(ctx context.Context, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, resultMessages(p.runID, results))
}

// Close is a no-op; the producer is closed by whoever opened it.
func (p *KafkaResultPublisher) Close() error { return nil }

type resultMessage struct {
	RunID      string   `json:"run_id"`
	Strategies []string `json:"strategies"`
	models.Result
}

func resultMessages(runID string, results []models.Result) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, len(results))
	for i, r := range results {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(r.Order.Symbol),
			Value:   resultMessage{RunID: runID, Strategies: r.Order.Strategies(), Result: r},
			Headers: map[string]string{"status": string(r.Status)},
		}
	}
	return msgs
}

var (
	_ repository.ResultSink = (*ClickHouseResultStore)(nil)
	_ repository.ResultSink = (*KafkaResultPublisher)(nil)
)
