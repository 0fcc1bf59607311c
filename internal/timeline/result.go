package timeline

import (
	"fmt"
	"strings"
)

// Direction selects what Load fetches.
type Direction int

const (
	// Refresh fetches the newest page and reconciles it with the cache.
	Refresh Direction = iota + 1
	// Prepend is accepted for API symmetry and never fetches.
	Prepend
	// Append fetches the page below the bottom row.
	Append
)

func (d Direction) String() string {
	switch d {
	case Refresh:
		return "refresh"
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection maps "refresh", "prepend" or "append" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "refresh":
		return Refresh, nil
	case "prepend":
		return Prepend, nil
	case "append":
		return Append, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// LoadResult is the outcome of a load. It is either Success or Failure.
//
//	switch r := res.(type) {
//	case timeline.Success:
//	case timeline.Failure:
//	}
type LoadResult interface {
	loadResult()
}

// Success reports a completed merge.
type Success struct {
	// EndOfPagination is true when the fetched page was short, so there is
	// nothing further in the requested direction.
	EndOfPagination bool
}

// Failure reports a load that wrote nothing. Err is classified with
// feederr.
type Failure struct {
	Err error
}

func (Success) loadResult() {}
func (Failure) loadResult() {}

func (f Failure) Error() string {
	return f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Err returns the failure carried by r, or nil for Success.
func Err(r LoadResult) error {
	switch r := r.(type) {
	case Failure:
		return r.Err
	case Success:
		return nil
	}
	return nil
}
