package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes a result's trace as plain text, one block per step:
//
//	[3] refresh
//	    calls: before(4, limit=3), newest(limit=3)
//	    result: success
//	    rows: 8 7 gap:5 3 2 1
func Render(scenario *Scenario, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)
	fmt.Fprintf(&buf, "engine: %s\n", scenario.Engine)
	fmt.Fprintf(&buf, "page_size: %d\n", scenario.PageSize)

	for _, ev := range result.Trace {
		fmt.Fprintf(&buf, "\n[%d] %s\n", ev.Seq, ev.Action)
		switch ev.kind {
		case kindTimeline:
			fmt.Fprintf(&buf, "    calls: %s\n", callList(ev.Calls))
			fmt.Fprintf(&buf, "    result: %s\n", ev.Outcome)
			fmt.Fprintf(&buf, "    rows: %s\n", rowList(ev.Rows))
		case kindOverlay:
			fmt.Fprintf(&buf, "    rows: %s\n", rowList(ev.Rows))
		case kindNotifications:
			fmt.Fprintf(&buf, "    calls: %s\n", callList(ev.Calls))
			fmt.Fprintf(&buf, "    result: %s\n", ev.Outcome)
			fmt.Fprintf(&buf, "    delivered: %s\n", listString(ev.Delivered))
			fmt.Fprintf(&buf, "    watermark: %s\n", ev.Watermark)
		case kindMarkSeen:
			fmt.Fprintf(&buf, "    watermark: %s\n", ev.Watermark)
		}
	}
	return []byte(buf.String())
}

func callList(calls []string) string {
	if len(calls) == 0 {
		return "(none)"
	}
	return strings.Join(calls, ", ")
}

func rowList(rows []string) string {
	if len(rows) == 0 {
		return "(empty)"
	}
	return strings.Join(rows, " ")
}

// RunWithGolden executes a scenario and compares its rendered trace against
// testdata/golden/{scenario.Name}.golden. Failed expectations are reported
// through t before the comparison.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario, result)
	return nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Render(scenario, result))
}
