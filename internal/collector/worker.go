package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	talon "github.com/talonproxy/talon/internal"
)

// Worker drains a Sink's upload queue under the shared worker-runner
// abstraction (internal/worker), posting one [Document] body per job.
type Worker struct {
	sink         *Sink
	drainTimeout time.Duration
}

// NewWorker returns a Worker for sink. drainTimeout bounds how long, on
// shutdown, the worker keeps draining an already-queued backlog before
// abandoning whatever remains -- detached uploads are never waited on
// indefinitely.
func NewWorker(sink *Sink, drainTimeout time.Duration) *Worker {
	return &Worker{sink: sink, drainTimeout: drainTimeout}
}

// Name implements worker.Worker.
func (w *Worker) Name() string { return "collector" }

// Run implements worker.Worker: it drains jobs until ctx is cancelled, then
// continues draining whatever is already queued for up to drainTimeout
// before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		// Checked before the select: with both cases ready, select picks at
		// random, and a job taken after cancellation would be uploaded with
		// an already-cancelled context instead of being drained.
		if ctx.Err() != nil {
			w.drain()
			return nil
		}
		select {
		case job := <-w.sink.queue:
			w.upload(ctx, job)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

// drain processes whatever is already buffered in the queue, bounded by
// drainTimeout, then abandons anything still queued past that deadline.
func (w *Worker) drain() {
	if w.drainTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	for {
		select {
		case job := <-w.sink.queue:
			w.upload(ctx, job)
		case <-ctx.Done():
			if n := len(w.sink.queue); n > 0 {
				w.sink.logger.Warn("collector shutdown drain timed out, abandoning queued uploads", "remaining", n)
			}
			return
		default:
			return
		}
	}
}

func (w *Worker) upload(ctx context.Context, job uploadJob) {
	sink := w.sink
	body, err := json.Marshal([]*talon.Document{job.doc})
	if err != nil {
		w.recordOutcome("error")
		sink.logger.Warn("collector: marshal document failed", "error", err)
		return
	}

	url := sink.baseURL + "/api/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		w.recordOutcome("error")
		sink.logger.Warn("collector: build request failed", "error", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+job.creds.Credentials)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sink.client.Do(req)
	if err != nil {
		w.recordOutcome("error")
		sink.logger.Warn("collector: upload failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.recordOutcome("rejected")
		sink.logger.Warn("collector: upload rejected", "status", resp.StatusCode)
		return
	}
	w.recordOutcome("ok")
}

func (w *Worker) recordOutcome(outcome string) {
	if w.sink.metrics != nil {
		w.sink.metrics.CollectorUploadsTotal.WithLabelValues(outcome).Inc()
	}
}
