// ABOUTME: Sync queue processor delivering pending entries to the remote endpoint
// ABOUTME: Runs are serialized, sequential, oldest first, and never fail as a whole

package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/2389/mindmatters/internal/store"
)

// IdempotencyHeader carries the entry UUID on every delivery.
const IdempotencyHeader = "Idempotency-Key"

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DeliveryError describes one entry that could not be delivered.
type DeliveryError struct {
	EntryID int64
	UUID    string
	Status  int // 0 when no response was received
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("delivering entry %d: remote returned %d", e.EntryID, e.Status)
	}
	return fmt.Sprintf("delivering entry %d: %v", e.EntryID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Result summarizes one processor run.
type Result struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	// Remarked counts entries delivered by an earlier run and only marked now.
	Remarked int `json:"remarked"`
}

// Config configures a Processor.
type Config struct {
	Endpoint      string
	Client        Doer
	Timeout       time.Duration // per delivery
	RatePerSecond float64       // 0 disables pacing
	LedgerTTL     time.Duration
	LedgerSize    int
	Logger        *slog.Logger
}

// Processor drains the pending entries to the remote endpoint.
type Processor struct {
	store    store.Store
	endpoint string
	client   Doer
	timeout  time.Duration
	limiter  *rate.Limiter
	ledger   *Ledger
	logger   *slog.Logger

	// mu serializes runs; overlapping triggers wait their turn
	mu sync.Mutex

	statusMu   sync.Mutex
	lastResult Result
	lastRun    time.Time
}

// New creates a Processor.
func New(st store.Store, cfg Config) *Processor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Every(time.Duration(float64(time.Second) / cfg.RatePerSecond))
	}
	ttl := cfg.LedgerTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	size := cfg.LedgerSize
	if size <= 0 {
		size = 1000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		store:    st,
		endpoint: cfg.Endpoint,
		client:   client,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, 1),
		ledger:   NewLedger(ttl, size),
		logger:   logger.With("component", "syncq"),
	}
}

// Close stops the ledger's cleanup goroutine.
func (p *Processor) Close() {
	p.ledger.Close()
}

// LastResult returns the outcome and time of the most recent run.
func (p *Processor) LastResult() (Result, time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.lastResult, p.lastRun
}

// Run delivers every pending entry once, oldest first. A failed entry is
// logged and stays pending; the remaining entries are still attempted.
// Run never returns an error and never panics.
func (p *Processor) Run(ctx context.Context) (res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("sync run panicked", "panic", r)
		}
		p.statusMu.Lock()
		p.lastResult = res
		p.lastRun = time.Now()
		p.statusMu.Unlock()
	}()

	if p.endpoint == "" {
		p.logger.Debug("no sync endpoint configured, skipping run")
		return res
	}

	pending, err := p.store.ListPendingSync(ctx)
	if err != nil {
		p.logger.Warn("failed to read pending entries", "error", err)
		return res
	}
	if len(pending) == 0 {
		return res
	}

	p.logger.Info("sync run started", "pending", len(pending))
	for _, entry := range pending {
		if ctx.Err() != nil {
			p.logger.Info("sync run cancelled", "remaining", len(pending)-res.Attempted)
			break
		}
		res.Attempted++

		key := ledgerKey(entry)
		if p.ledger.Delivered(key) {
			if p.markSynced(ctx, entry, key) {
				res.Delivered++
				res.Remarked++
			} else {
				res.Failed++
			}
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			res.Attempted--
			break
		}

		if err := p.deliver(ctx, entry); err != nil {
			p.logger.Warn("entry delivery failed", "entry_id", entry.ID, "error", err)
			res.Failed++
			continue
		}

		p.ledger.Remember(key)
		if p.markSynced(ctx, entry, key) {
			res.Delivered++
		} else {
			res.Failed++
		}
	}

	p.logger.Info("sync run finished",
		"attempted", res.Attempted,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return res
}

func (p *Processor) markSynced(ctx context.Context, entry *store.MoodEntry, key string) bool {
	if err := p.store.MarkSynced(ctx, entry.ID); err != nil {
		p.logger.Warn("failed to mark entry synced", "entry_id", entry.ID, "error", err)
		return false
	}
	p.ledger.Forget(key)
	return true
}

// deliver POSTs the entry payload. Any 2xx status counts as delivered.
func (p *Processor) deliver(ctx context.Context, entry *store.MoodEntry) error {
	body, err := json.Marshal(entry.Payload())
	if err != nil {
		return &DeliveryError{EntryID: entry.ID, UUID: entry.UUID, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{EntryID: entry.ID, UUID: entry.UUID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if entry.UUID != "" {
		req.Header.Set(IdempotencyHeader, entry.UUID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &DeliveryError{EntryID: entry.ID, UUID: entry.UUID, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			EntryID: entry.ID,
			UUID:    entry.UUID,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return nil
}

func ledgerKey(entry *store.MoodEntry) string {
	if entry.UUID != "" {
		return entry.UUID
	}
	return "id:" + strconv.FormatInt(entry.ID, 10)
}
