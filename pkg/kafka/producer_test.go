package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	if err != nil || string(b) != "raw" {
		t.Fatalf("bytes: got %q, %v", b, err)
	}
	b, err = encodeValue("text")
	if err != nil || string(b) != "text" {
		t.Fatalf("string: got %q, %v", b, err)
	}
	b, err = encodeValue(map[string]any{"symbol": "EURUSD"})
	if err != nil || string(b) != `{"symbol":"EURUSD"}` {
		t.Fatalf("json: got %q, %v", b, err)
	}
	if _, err := encodeValue(make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestEncodeHeaders(t *testing.T) {
	if encodeHeaders(nil) != nil {
		t.Fatalf("expected nil headers")
	}
	h := encodeHeaders(map[string]string{"run_id": "r1"})
	if len(h) != 1 || h[0].Key != "run_id" || string(h[0].Value) != "r1" {
		t.Fatalf("unexpected headers: %+v", h)
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"":       kafka.Gzip,
	}
	for in, want := range cases {
		if got := parseCompression(in); got != want {
			t.Fatalf("parseCompression(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected hash balancer, got %T", p.writer.Balancer)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestProducerOptionsKeepDefaults(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithCompression(""),
		WithMaxAttempts(0),
		WithBatchSize(0),
		WithTimeouts(0, 0),
		WithBatchTimeout(50 * time.Millisecond),
		WithBatchBytes(0),
	} {
		opt(&cfg)
	}
	if cfg.Compression != "gzip" || cfg.MaxAttempts != 3 || cfg.BatchSize != 100 || cfg.WriteTimeout != 10*time.Second {
		t.Fatalf("zero options overrode defaults: %+v", cfg)
	}
	if cfg.BatchTimeout != 50*time.Millisecond || cfg.BatchBytes != 1<<20 {
		t.Fatalf("batch timeout = %s, bytes = %d", cfg.BatchTimeout, cfg.BatchBytes)
	}
	WithBatchBytes(4096)(&cfg)
	if cfg.BatchBytes != 4096 {
		t.Fatalf("batch bytes = %d", cfg.BatchBytes)
	}

	WithRequiredAcks(2)(&cfg)
	WithBrokers([]string{"k:9092"})(&cfg)
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected invalid acks error")
	}
	if _, err := NewProducer(WithBrokers([]string{"k:9092"}), WithRequiredAcks(5)); err == nil {
		t.Fatalf("expected NewProducer to reject acks")
	}
}

func TestParseCompressionNone(t *testing.T) {
	if got := parseCompression("none"); got != 0 {
		t.Fatalf("none should disable compression, got %v", got)
	}
}
