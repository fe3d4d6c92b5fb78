package cache

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	cases := []struct{ prefix, name, want string }{
		{"", "EURUSD", "EURUSD"},
		{"aowi:quote", "EURUSD", "aowi:quote:EURUSD"},
		{"aowi:quote:", "EURUSD", "aowi:quote:EURUSD"},
	}
	for _, c := range cases {
		if got := Key(c.prefix, c.name); got != c.want {
			t.Fatalf("Key(%q, %q) = %q, want %q", c.prefix, c.name, got, c.want)
		}
	}
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(WithRedisAddr("127.0.0.1:1"), WithRedisPingTimeout(200*time.Millisecond))
	if err == nil {
		t.Fatalf("expected ping error")
	}
}
