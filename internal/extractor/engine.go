package extractor

import (
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"

	talon "github.com/talonproxy/talon/internal"
	"github.com/talonproxy/talon/internal/telemetry"
)

// Engine runs every loaded Processor against an intercepted Response and
// returns the resulting Document. Processors are immutable once loaded and
// may be shared freely across Flows.
type Engine struct {
	processors []*Processor
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// New returns an Engine over the given, already-compiled Processors.
func New(processors []*Processor, logger *slog.Logger, metrics *telemetry.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{processors: processors, logger: logger, metrics: metrics}
}

// Extract runs every Processor against resp and returns one Document whose
// data is the array of per-processor accumulators. A Processor whose
// hostname does not match response.request.uri.host is skipped entirely and
// contributes nothing to the array; a Processor that matches but whose
// rules produce no selector writes still contributes an empty object.
func (e *Engine) Extract(resp *talon.Response) (*talon.Document, error) {
	host := ""
	if resp.Request != nil && resp.Request.URI != nil {
		host = resp.Request.URI.Host
	}

	docs := make([]map[string]any, 0, len(e.processors))
	for _, p := range e.processors {
		if !p.Hostname.MatchString(host) {
			continue
		}
		docs = append(docs, e.runProcessor(p, resp))
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}
	return &talon.Document{
		Folder: "temp",
		Data:   talon.PresentData(data),
	}, nil
}

func (e *Engine) runProcessor(p *Processor, resp *talon.Response) map[string]any {
	acc := map[string]any{}
	var reqMethod, reqPath string
	if resp.Request != nil {
		reqMethod = resp.Request.Method
		if resp.Request.URI != nil {
			reqPath = resp.Request.URI.Path
		}
	}

	var reqJSON, respJSON gjson.Result
	var reqParsed, respParsed bool

	for _, rule := range p.Rules {
		if rule.Method != reqMethod {
			continue
		}
		if !rule.Path.MatchString(reqPath) {
			continue
		}

		if len(rule.RequestSelectors) > 0 {
			if !reqParsed {
				reqParsed = true
				if resp.Request != nil && len(resp.Request.Payload) > 0 {
					if !gjson.ValidBytes(resp.Request.Payload) {
						e.logger.Warn("extractor: request body is not valid JSON, skipping request selectors",
							"processor", p.Name, "rule", rule.Name)
					} else {
						reqJSON = gjson.ParseBytes(resp.Request.Payload)
					}
				}
			}
			if reqJSON.Exists() || reqJSON.Raw != "" {
				applySelectors(acc, reqJSON, rule.RequestSelectors)
			}
		}

		if len(rule.ResponseSelectors) > 0 {
			if !respParsed {
				respParsed = true
				if len(resp.Payload) > 0 {
					if !gjson.ValidBytes(resp.Payload) {
						e.logger.Warn("extractor: response body is not valid JSON, skipping response selectors",
							"processor", p.Name, "rule", rule.Name)
					} else {
						respJSON = gjson.ParseBytes(resp.Payload)
					}
				}
			}
			if respJSON.Exists() || respJSON.Raw != "" {
				applySelectors(acc, respJSON, rule.ResponseSelectors)
			}
		}

		if e.metrics != nil {
			e.metrics.ExtractorMatchesTotal.WithLabelValues(p.Name).Inc()
		}
	}

	return acc
}

func applySelectors(acc map[string]any, root gjson.Result, selectors []Selector) {
	for _, sel := range selectors {
		result := root.Get(sel.Value)
		if !result.Exists() {
			continue
		}
		setDotted(acc, sel.Key, result.Value())
	}
}
