package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/feedkeep/internal/ids"
)

// AssertionError is returned when a step's outcome differs from its
// expect clause.
type AssertionError struct {
	Type     string // which part of the expect clause failed
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome
	Diff     string // cmp.Diff of the two, when they are lists
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n  diff (-expected +actual):\n%s", e.Diff)
	}
	return buf.String()
}

// checkExpect compares one step against its expect clause.
func checkExpect(ev TraceEvent, want Expect) []string {
	var errs []string
	fail := func(err *AssertionError) { errs = append(errs, err.Error()) }

	if want.Case != "" {
		got := "success"
		if strings.HasPrefix(ev.Outcome, "failure") {
			got = "failure"
		}
		if got != want.Case {
			fail(&AssertionError{Type: "case", Expected: want.Case, Actual: ev.Outcome})
		}
	}
	if want.Kind != "" && ev.failKind != want.Kind {
		fail(&AssertionError{Type: "kind", Expected: want.Kind, Actual: orNone(ev.failKind)})
	}
	if want.EndOfPagination != nil && ev.endOfPage != *want.EndOfPagination {
		fail(&AssertionError{
			Type:     "end_of_pagination",
			Expected: fmt.Sprint(*want.EndOfPagination),
			Actual:   fmt.Sprint(ev.endOfPage),
		})
	}
	if want.Rows != nil {
		if diff := cmp.Diff(want.Rows, ev.Rows, cmpopts.EquateEmpty()); diff != "" {
			fail(&AssertionError{Type: "rows", Expected: listString(want.Rows), Actual: listString(ev.Rows), Diff: diff})
		}
	}
	if want.Notifications != nil {
		if diff := cmp.Diff(want.Notifications, ev.Delivered, cmpopts.EquateEmpty()); diff != "" {
			fail(&AssertionError{
				Type:     "notifications",
				Expected: listString(want.Notifications),
				Actual:   listString(ev.Delivered),
				Diff:     diff,
			})
		}
	}
	return errs
}

// checkInvariants verifies what must hold after every step: rows are
// strictly newest first, so no id appears twice.
func checkInvariants(ev TraceEvent) []string {
	var errs []string
	var prev string
	for i, row := range ev.Rows {
		id := rowID(row)
		if i > 0 && !ids.Less(id, prev) {
			errs = append(errs, fmt.Sprintf("rows out of order: %s after %s", id, prev))
		}
		prev = id
	}
	if !slices.IsSortedFunc(ev.Delivered, ids.Compare) {
		errs = append(errs, fmt.Sprintf("notifications not oldest first: %s", listString(ev.Delivered)))
	}
	return errs
}

// rowID strips the trace decorations from a rendered row.
func rowID(row string) string {
	row = strings.TrimPrefix(row, "gap:")
	row, _, _ = strings.Cut(row, "(")
	return row
}

func listString(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, " ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
