package extractor

import (
	"encoding/json"
	"net/url"
	"testing"

	talon "github.com/talonproxy/talon/internal"
)

const donutsYAML = `
metadata:
  name: donuts
  hostname: ^.*\.domain\.com$
spec:
  rules:
    - name: list-donuts
      method: GET
      path: /donuts
      response:
        selectors:
          - key: extracted.donutNames
            value: $[*].name
`

func mustResponse(t *testing.T, host, path, body string) *talon.Response {
	t.Helper()
	u, err := url.Parse("http://" + host + path)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	req := talon.NewRequestBuilder().Method("GET").URI(u).Build()
	return talon.NewResponseBuilder().
		Status(200).
		Payload([]byte(body)).
		ForRequest(req).
		Build()
}

// S6: Processor with hostname regex matching and a response selector
// extracting an array of names from a JSON array body.
func TestEngine_ExtractorMatch(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(donutsYAML), "donuts.yaml")
	if err != nil {
		t.Fatalf("parse processor: %v", err)
	}
	eng := New([]*Processor{p}, nil, nil)

	resp := mustResponse(t, "shop.domain.com", "/donuts",
		`[{"name":"Cake"},{"name":"Raised"},{"name":"Old Fashioned"}]`)

	doc, err := eng.Extract(resp)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	wire, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got struct {
		Folder string `json:"folder"`
		Data   []struct {
			Extracted struct {
				DonutNames []string `json:"donutNames"`
			} `json:"extracted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(wire, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got.Folder != "temp" {
		t.Errorf("folder = %q, want temp", got.Folder)
	}
	if len(got.Data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(got.Data))
	}
	want := []string{"Cake", "Raised", "Old Fashioned"}
	names := got.Data[0].Extracted.DonutNames
	if len(names) != len(want) {
		t.Fatalf("donutNames = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("donutNames[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

// S7: a response whose request host does not match the Processor's hostname
// regex skips the processor entirely -- the output array is empty.
func TestEngine_HostnameMiss(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(donutsYAML), "donuts.yaml")
	if err != nil {
		t.Fatalf("parse processor: %v", err)
	}
	eng := New([]*Processor{p}, nil, nil)

	resp := mustResponse(t, "subdomain.domain-idk.com", "/donuts",
		`[{"name":"Cake"}]`)

	doc, err := eng.Extract(resp)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if string(doc.Data.Value) != "[]" {
		t.Errorf("data = %s, want []", doc.Data.Value)
	}
}

// Property: extractor monotonicity -- adding a non-matching rule to a
// Processor does not change the extracted document.
func TestEngine_Monotonicity(t *testing.T) {
	t.Parallel()
	base, err := Parse([]byte(donutsYAML), "donuts.yaml")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}

	const withExtraRule = donutsYAML + `
    - name: unrelated
      method: POST
      path: /unrelated
      response:
        selectors:
          - key: ignored
            value: $.nope
`
	extended, err := Parse([]byte(withExtraRule), "donuts-extended.yaml")
	if err != nil {
		t.Fatalf("parse extended: %v", err)
	}

	resp := mustResponse(t, "shop.domain.com", "/donuts", `[{"name":"Cake"}]`)

	d1, err := New([]*Processor{base}, nil, nil).Extract(resp)
	if err != nil {
		t.Fatalf("extract base: %v", err)
	}
	d2, err := New([]*Processor{extended}, nil, nil).Extract(resp)
	if err != nil {
		t.Fatalf("extract extended: %v", err)
	}
	if string(d1.Data.Value) != string(d2.Data.Value) {
		t.Errorf("adding a non-matching rule changed the document: %s vs %s", d1.Data.Value, d2.Data.Value)
	}
}

func TestTranslateJSONPath(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"$[*].name":             "#.name",
		"$.friends[*].first":    "friends.#.first",
		"$.a.b.c":               "a.b.c",
		"$":                     "",
	}
	for in, want := range cases {
		if got := translateJSONPath(in); got != want {
			t.Errorf("translateJSONPath(%q) = %q, want %q", in, got, want)
		}
	}
}
