package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/feedkeep/internal/ids"
)

// Engine names accepted in Scenario.Engine.
const (
	EngineCached   = "cached"
	EngineVolatile = "volatile"
)

// DefaultAccount is the account scope scenarios run under unless they name one.
const DefaultAccount = "alice@example.social"

// Scenario is a scripted conversation between a fake server and one sync
// engine. Steps mutate the server or drive the engine; every step records
// what the engine asked the server for and what the cache looks like after.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Engine is "cached" (default) or "volatile".
	Engine string `yaml:"engine,omitempty"`

	// Account is the account scope. Defaults to DefaultAccount.
	Account string `yaml:"account,omitempty"`

	// PageSize is the timeline page size. Required.
	PageSize int `yaml:"page_size"`

	// NotificationPageSize is the notification page size. Zero uses the
	// syncer's default.
	NotificationPageSize int `yaml:"notification_page_size,omitempty"`

	// Server is the fake server's initial content.
	Server Server `yaml:"server"`

	// Markers seeds the local read positions and the server marker.
	Markers *Markers `yaml:"markers,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Server is the fake server's initial content, ids only.
type Server struct {
	Statuses      []string `yaml:"statuses,omitempty"`
	Notifications []string `yaml:"notifications,omitempty"`

	// NoMarkers makes the server reject the markers API.
	NoMarkers bool `yaml:"no_markers,omitempty"`
}

// Markers seeds notification read positions.
type Markers struct {
	Remote   string `yaml:"remote,omitempty"`
	Local    string `yaml:"local,omitempty"`
	LastSeen string `yaml:"last_seen,omitempty"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	// Post adds statuses to the server.
	Post []string `yaml:"post,omitempty"`
	// Delete removes statuses from the server.
	Delete []string `yaml:"delete,omitempty"`
	// Notify adds mention notifications to the server.
	Notify []string `yaml:"notify,omitempty"`
	// Fail makes the next request of the named kind fail with a network
	// error: newest, before, after or notifications.
	Fail string `yaml:"fail,omitempty"`

	// Load runs the engine in a direction: refresh, append or prepend.
	Load string `yaml:"load,omitempty"`
	// Below is the Append cursor; empty pages below the bottom row.
	Below string `yaml:"below,omitempty"`
	// FillGap fills the placeholder at this id.
	FillGap string `yaml:"fill_gap,omitempty"`
	// Expand sets the expanded overlay flag on a cached status.
	Expand string `yaml:"expand,omitempty"`

	// SyncNotifications runs one notification sync.
	SyncNotifications bool `yaml:"sync_notifications,omitempty"`
	// MarkSeen records the user's view position.
	MarkSeen string `yaml:"mark_seen,omitempty"`

	// Expect checks the step's outcome. Optional.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step's outcome. Unset fields are not checked.
type Expect struct {
	// Case is "success" or "failure".
	Case string `yaml:"case,omitempty"`
	// Kind is the failure kind: NETWORK, PROTOCOL or STORE.
	Kind string `yaml:"kind,omitempty"`
	// EndOfPagination is checked for successful loads.
	EndOfPagination *bool `yaml:"end_of_pagination,omitempty"`
	// Rows is the cache after the step, newest first. Placeholders are
	// written "gap:<id>" and expanded statuses "<id>(expanded)".
	Rows []string `yaml:"rows,omitempty"`
	// Notifications are the ids delivered by a sync, oldest first.
	Notifications []string `yaml:"notifications,omitempty"`
}

// Action names the step's action for the trace, e.g. "fill_gap 8".
func (s Step) Action() string {
	switch {
	case len(s.Post) > 0:
		return "post " + join(s.Post)
	case len(s.Delete) > 0:
		return "delete " + join(s.Delete)
	case len(s.Notify) > 0:
		return "notify " + join(s.Notify)
	case s.Fail != "":
		return "fail " + s.Fail
	case s.Load != "" && s.Below != "":
		return s.Load + " below " + s.Below
	case s.Load != "":
		return s.Load
	case s.FillGap != "":
		return "fill_gap " + s.FillGap
	case s.Expand != "":
		return "expand " + s.Expand
	case s.SyncNotifications:
		return "sync_notifications"
	case s.MarkSeen != "":
		return "mark_seen " + s.MarkSeen
	}
	return ""
}

func (s Step) actionCount() int {
	n := 0
	for _, set := range []bool{
		len(s.Post) > 0, len(s.Delete) > 0, len(s.Notify) > 0, s.Fail != "",
		s.Load != "", s.FillGap != "", s.Expand != "", s.SyncNotifications, s.MarkSeen != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "fill-gap:" vs "fill_gap:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Engine == "" {
		scenario.Engine = EngineCached
	}
	if scenario.Account == "" {
		scenario.Account = DefaultAccount
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

var (
	validLoads = []string{"refresh", "append", "prepend"}
	validFails = []string{"newest", "before", "after", "notifications"}
	validCases = []string{"success", "failure"}
)

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Engine != EngineCached && s.Engine != EngineVolatile {
		return fmt.Errorf("unknown engine %q", s.Engine)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if err := validIDs("server.statuses", s.Server.Statuses); err != nil {
		return err
	}
	if err := validIDs("server.notifications", s.Server.Notifications); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	switch step.actionCount() {
	case 0:
		return fmt.Errorf("steps[%d]: no action", i)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: more than one action", i)
	}

	if step.Load != "" && !slices.Contains(validLoads, step.Load) {
		return fmt.Errorf("steps[%d]: unknown load direction %q", i, step.Load)
	}
	if step.Below != "" && step.Load != "append" {
		return fmt.Errorf("steps[%d]: below is only valid with load: append", i)
	}
	if step.Fail != "" && !slices.Contains(validFails, step.Fail) {
		return fmt.Errorf("steps[%d]: unknown request kind %q", i, step.Fail)
	}
	for _, list := range [][]string{step.Post, step.Delete, step.Notify} {
		if err := validIDs(fmt.Sprintf("steps[%d]", i), list); err != nil {
			return err
		}
	}
	if step.Expect != nil && step.Expect.Case != "" && !slices.Contains(validCases, step.Expect.Case) {
		return fmt.Errorf("steps[%d].expect: unknown case %q", i, step.Expect.Case)
	}
	return nil
}

func validIDs(field string, list []string) error {
	for _, id := range list {
		if !ids.Valid(id) {
			return fmt.Errorf("%s: invalid id %q", field, id)
		}
	}
	return nil
}
