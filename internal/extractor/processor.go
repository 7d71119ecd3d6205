// Package extractor implements the rule-driven ExtractorEngine: Processor
// definitions loaded from YAML, matched against intercepted responses by
// hostname and per-rule method/path, lifting JSON fields from the request
// and response bodies into an accumulated Document via Selector expressions.
package extractor

import (
	"fmt"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"
)

// Selector is a (destination-key, source-expression) pair that lifts JSON
// data from a request or response body into the accumulator.
type Selector struct {
	Key   string // dotted destination path, e.g. "extracted.donutNames"
	Value string // compiled gjson path, translated from the YAML's JSONPath-like dialect
}

// Rule matches a single request method/path combination within a Processor
// and lists the selectors to run against the matching request and response
// bodies.
type Rule struct {
	Name              string
	Description       string
	Method            string
	Path              *regexp.Regexp
	RequestSelectors  []Selector
	ResponseSelectors []Selector
}

// Processor is a named, hostname-scoped collection of extraction rules.
// Processors are immutable after Load: every regex and json-path expression
// is compiled once at load time, never deferred to request processing.
type Processor struct {
	Name     string
	Hostname *regexp.Regexp
	Rules    []Rule
}

// yamlDoc mirrors the on-disk Processor definition format prior to
// compilation.
type yamlDoc struct {
	Metadata struct {
		Name     string `yaml:"name"`
		Hostname string `yaml:"hostname"`
	} `yaml:"metadata"`
	Spec struct {
		Rules []yamlRule `yaml:"rules"`
	} `yaml:"spec"`
}

type yamlRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Method      string `yaml:"method"`
	Path        string `yaml:"path"`
	Request     struct {
		Selectors []yamlSelector `yaml:"selectors"`
	} `yaml:"request"`
	Response struct {
		Selectors []yamlSelector `yaml:"selectors"`
	} `yaml:"response"`
}

type yamlSelector struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// LoadFile reads and compiles a single Processor definition file. Every
// compilation failure (invalid hostname or path regex) is fatal here, at
// load time, never deferred to request processing.
func LoadFile(path string) (*Processor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extractor: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse compiles a Processor definition from raw YAML bytes. name is used
// only to annotate error messages (typically the source file path).
func Parse(data []byte, name string) (*Processor, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("extractor: parse %s: %w", name, err)
	}

	hostRe, err := regexp.Compile(doc.Metadata.Hostname)
	if err != nil {
		return nil, fmt.Errorf("extractor: %s: invalid hostname regex %q: %w", name, doc.Metadata.Hostname, err)
	}

	p := &Processor{
		Name:     doc.Metadata.Name,
		Hostname: hostRe,
	}

	for _, yr := range doc.Spec.Rules {
		pathRe, err := regexp.Compile(yr.Path)
		if err != nil {
			return nil, fmt.Errorf("extractor: %s: rule %q: invalid path regex %q: %w", name, yr.Name, yr.Path, err)
		}
		rule := Rule{
			Name:        yr.Name,
			Description: yr.Description,
			Method:      yr.Method,
			Path:        pathRe,
		}
		for _, ys := range yr.Request.Selectors {
			rule.RequestSelectors = append(rule.RequestSelectors, Selector{
				Key:   ys.Key,
				Value: translateJSONPath(ys.Value),
			})
		}
		for _, ys := range yr.Response.Selectors {
			rule.ResponseSelectors = append(rule.ResponseSelectors, Selector{
				Key:   ys.Key,
				Value: translateJSONPath(ys.Value),
			})
		}
		p.Rules = append(p.Rules, rule)
	}

	return p, nil
}

// LoadFiles compiles every path in order, returning the first error
// encountered. A ConfigError-style fatal load is expected of the caller: any
// failure here should abort startup rather than skip the offending file.
func LoadFiles(paths []string) ([]*Processor, error) {
	procs := make([]*Processor, 0, len(paths))
	for _, path := range paths {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}
