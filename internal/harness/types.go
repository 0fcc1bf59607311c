package harness

// TraceEvent records one scenario step.
type TraceEvent struct {
	// Seq is the 1-based step number.
	Seq int `json:"seq"`

	// Action names the step, e.g. "refresh" or "fill_gap 8".
	Action string `json:"action"`

	// Calls are the requests the step made to the fake server. Timeline
	// fetches that run concurrently are sorted.
	Calls []string `json:"calls,omitempty"`

	// Outcome is "success", "success (end of pagination)" or
	// "failure <KIND>". Empty for steps that only touch the server.
	Outcome string `json:"outcome,omitempty"`

	// Rows is the cached timeline after the step, when the step touched it.
	Rows []string `json:"rows,omitempty"`

	// Delivered are the notification ids a sync returned, oldest first.
	Delivered []string `json:"delivered,omitempty"`

	// Watermark is "remote=.. local=.. last_seen=..", for notification steps.
	Watermark string `json:"watermark,omitempty"`

	kind      stepKind
	endOfPage bool
	failKind  string
}

type stepKind int

const (
	kindServer stepKind = iota
	kindTimeline
	kindOverlay
	kindNotifications
	kindMarkSeen
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and invariant held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
