package usecase

import (
	"sync"

	"AOWI/internal/domain/models"
)

// OutcomeLog is the append-only record of results for one dispatch run.
// It is safe for concurrent readers while the loop appends.
type OutcomeLog struct {
	mu      sync.RWMutex
	results []models.Result
	counts  map[models.Status]int
	subs    map[int]chan models.Result
	nextSub int
	dropped int
}

func NewOutcomeLog() *OutcomeLog {
	return &OutcomeLog{
		counts: make(map[models.Status]int),
		subs:   make(map[int]chan models.Result),
	}
}

// Append records r and fans it out to subscribers. Slow subscribers miss results
// rather than block the loop.
func (l *OutcomeLog) Append(r models.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
	l.counts[r.Status]++
	for _, ch := range l.subs {
		select {
		case ch <- r:
		default:
			l.dropped++
		}
	}
}

// Len returns the number of recorded results.
func (l *OutcomeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.results)
}

// Snapshot returns a copy of every result in append order.
func (l *OutcomeLog) Snapshot() []models.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Result, len(l.results))
	copy(out, l.results)
	return out
}

// Filter returns up to limit of the most recent results matching status and symbol,
// in append order. Empty filters match everything; limit <= 0 means no limit.
func (l *OutcomeLog) Filter(status models.Status, symbol string, limit int) []models.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Result
	for i := len(l.results) - 1; i >= 0; i-- {
		r := l.results[i]
		if status != "" && r.Status != status {
			continue
		}
		if symbol != "" && r.Order.Symbol != symbol {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Counts returns result totals by status.
func (l *OutcomeLog) Counts() map[models.Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[models.Status]int, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel receiving results appended from now on, and a cancel func.
func (l *OutcomeLog) Subscribe(buffer int) (<-chan models.Result, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.Result, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped returns how many fan-out deliveries were skipped for slow subscribers.
func (l *OutcomeLog) Dropped() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
