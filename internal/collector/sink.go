// Package collector implements CollectorSink: a response-side handler that
// ships ExtractorEngine output to an upstream collection endpoint via a
// bounded work queue drained by a background worker, never by a goroutine
// spawned per response.
package collector

import (
	"context"
	"log/slog"
	"net/http"

	talon "github.com/talonproxy/talon/internal"
	"github.com/talonproxy/talon/internal/extractor"
	"github.com/talonproxy/talon/internal/telemetry"
)

// uploadJob is an owned clone of everything a detached upload needs; it
// must not reference Flow state that connection close would invalidate.
type uploadJob struct {
	creds talon.Credentials
	doc   *talon.Document
}

// Sink is a talon.Handler that extracts structured documents from matching
// responses and enqueues them for background upload. When baseURL is empty,
// or a Flow carries no credentials, the sink is a no-op for that response.
type Sink struct {
	baseURL string
	client  *http.Client
	engine  *extractor.Engine
	queue   chan uploadJob
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New returns a Sink posting to baseURL+"/api/documents" with an upload
// queue of the given size. A nil engine makes OnResponse a no-op: nothing is
// extracted or enqueued.
func New(baseURL string, client *http.Client, queueSize int, engine *extractor.Engine, logger *slog.Logger, metrics *telemetry.Metrics) *Sink {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Sink{
		baseURL: baseURL,
		client:  client,
		engine:  engine,
		queue:   make(chan uploadJob, queueSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Saturated reports whether the upload queue is completely full, i.e. the
// background worker has fallen far enough behind that the next enqueue
// would be dropped. Used as a readiness signal: a permanently full queue
// means uploads are failing or the endpoint is unreachable.
func (s *Sink) Saturated() bool {
	return len(s.queue) >= cap(s.queue)
}

// OnRequest never inspects the request: CollectorSink is purely a
// response-side handler.
func (s *Sink) OnRequest(_ context.Context, _ *talon.Flow, _ *talon.Request) (talon.Forward, error) {
	return talon.DoNothingForward(), nil
}

// OnResponse extracts a Document from resp and enqueues it for background
// upload, then returns immediately: the upload itself runs on the Sink's
// worker, never blocking the response path.
func (s *Sink) OnResponse(_ context.Context, flow *talon.Flow, resp *talon.Response) (talon.Reverse, error) {
	if s.baseURL == "" {
		return talon.DoNothingReverse(), nil
	}
	auth := flow.Auth()
	if auth == nil {
		return talon.DoNothingReverse(), nil
	}
	if s.engine == nil {
		return talon.DoNothingReverse(), nil
	}

	doc, err := s.engine.Extract(resp)
	if err != nil {
		return talon.DoNothingReverse(), &talon.CollectorError{Msg: "extract document", Err: err}
	}

	job := uploadJob{creds: *auth, doc: doc}
	select {
	case s.queue <- job:
	default:
		s.logger.Warn("collector queue full, dropping document", "flow_id", flow.ID())
		if s.metrics != nil {
			s.metrics.CollectorUploadsTotal.WithLabelValues("dropped").Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.CollectorQueueDepth.Set(float64(len(s.queue)))
	}
	return talon.DoNothingReverse(), nil
}
