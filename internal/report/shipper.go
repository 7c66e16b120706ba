package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/movie-api/moviecheck/internal/config"
	"github.com/movie-api/moviecheck/internal/safego"
	"github.com/movie-api/moviecheck/internal/telemetry"
	"github.com/movie-api/moviecheck/internal/verify"
)

// Shipper delivers step results to a destination outside the console
type Shipper interface {
	// Ship sends one result to the destination
	Ship(ctx context.Context, res *verify.Result) error
	// Close flushes anything pending and releases resources
	Close() error
}

type namedShipper struct {
	kind string
	Shipper
}

// MultiShipper ships to multiple destinations
type MultiShipper struct {
	shippers []namedShipper
	mu       sync.RWMutex
}

// NewMultiShipper creates a multi-shipper from the enabled entries of configs
func NewMultiShipper(configs []config.ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File.Path)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}

		if err != nil {
			ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.Add(cfg.Type, shipper)
	}

	return ms, nil
}

// Add registers an extra shipper under kind, used as the error metric label
func (ms *MultiShipper) Add(kind string, s Shipper) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.shippers = append(ms.shippers, namedShipper{kind: kind, Shipper: s})
}

// Len returns the number of active shippers
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends a result to all shippers. A failing shipper does not stop the others.
func (ms *MultiShipper) Ship(ctx context.Context, res *verify.Result) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, res); err != nil {
			lastErr = err
			telemetry.ShipperErrorsTotal.WithLabelValues(s.kind).Inc()
			slog.Warn("result shipper error", "shipper", s.kind, "step", res.Step, "error", err)
		}
	}
	return lastErr
}

// Close closes all shippers
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper posts results to a webhook, one by one or in JSON array batches
type WebhookShipper struct {
	cfg       *config.WebhookConfig
	client    *http.Client
	batchCh   chan *verify.Result
	batch     []*verify.Result
	batchMu   sync.Mutex
	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a new webhook shipper
func NewWebhookShipper(cfg *config.WebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ws := &WebhookShipper{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		batchCh: make(chan *verify.Result, 100),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if cfg.BatchSize > 0 {
		safego.Go("webhook-batcher", ws.processBatches)
	} else {
		close(ws.doneCh)
	}

	return ws, nil
}

// processBatches collects queued results and flushes them by size, by
// interval, and once more on close.
func (ws *WebhookShipper) processBatches() {
	defer close(ws.doneCh)

	flushInterval := ws.cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, res)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			ws.flushBatch()
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
			// drain what Ship queued before Close
		drain:
			for {
				select {
				case res := <-ws.batchCh:
					ws.batch = append(ws.batch, res)
				default:
					break drain
				}
			}
			ws.flushBatch()
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch sends the current batch. Callers hold batchMu.
func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}

	data, err := json.Marshal(ws.batch)
	if err != nil {
		slog.Warn("failed to marshal result batch", "error", err)
		ws.batch = ws.batch[:0]
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()

	if err := ws.sendRequest(ctx, data); err != nil {
		telemetry.ShipperErrorsTotal.WithLabelValues("webhook").Add(float64(len(ws.batch)))
		slog.Warn("failed to send result batch", "results", len(ws.batch), "error", err)
	}

	ws.batch = ws.batch[:0]
}

// Ship sends a result to the webhook, or queues it when batching
func (ws *WebhookShipper) Ship(ctx context.Context, res *verify.Result) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- res:
			return nil
		default:
			// queue full, send directly
		}
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return ws.sendRequest(ctx, data)
}

// sendRequest sends the HTTP request
func (ws *WebhookShipper) sendRequest(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close flushes pending batches and waits for the batcher to exit
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
	})
	<-ws.doneCh
	return nil
}

// FileShipper appends results to a JSON-lines file
type FileShipper struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) path for appending
func NewFileShipper(path string) (*FileShipper, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	return &FileShipper{file: file}, nil
}

// Ship writes a result as one JSON line
func (fs *FileShipper) Ship(_ context.Context, res *verify.Result) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}

// Transcript keeps results as JSON lines in memory for the artifact upload
// that follows the run.
type Transcript struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Ship appends a result line
func (t *Transcript) Ship(_ context.Context, res *verify.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	t.buf.Write(data)
	t.buf.WriteByte('\n')
	return nil
}

// Bytes returns a copy of the transcript so far
func (t *Transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.buf.Bytes())
}

// Close is a no-op; the transcript stays readable.
func (t *Transcript) Close() error { return nil }
