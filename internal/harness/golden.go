package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hex/internal/canonical"
)

// traceDomain separates trace digests from other canonical hashes.
const traceDomain = "hex/trace/v1"

// TraceJSON renders a trace as canonical JSON lines: a header line with the
// scenario name followed by one line per event.
func TraceJSON(name string, trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer

	header, err := canonical.Marshal(map[string]any{
		"scenario": name,
		"steps":    len(trace),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, event := range trace {
		line, err := canonical.Marshal(event.canonicalValue())
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// TraceDigest hashes a trace's canonical form.
func TraceDigest(name string, trace []TraceEvent) (string, error) {
	events := make([]any, len(trace))
	for i, event := range trace {
		events[i] = event.canonicalValue()
	}
	return canonical.Hash(traceDomain, map[string]any{
		"scenario": name,
		"trace":    events,
	})
}

// AssertGolden compares a result's trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := TraceJSON(name, result.Trace)
	if err != nil {
		t.Fatalf("render trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
