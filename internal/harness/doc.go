// Package harness runs scripted sync scenarios against the real timeline
// engines and notification syncer.
//
// A scenario drives a fake server and one engine through a list of steps,
// checks each step's expect clause, and snapshots the whole run as a text
// trace compared with goldie.
//
// # Scenario Format
//
//	name: gap_then_fill
//	description: "A burst of new posts leaves a placeholder"
//	engine: cached            # or volatile
//	page_size: 3
//	server:
//	  statuses: ["3", "2", "1"]
//	steps:
//	  - load: refresh
//	  - post: ["8", "7", "5"]
//	  - load: refresh
//	    expect:
//	      case: success
//	      rows: ["8", "7", "gap:5", "3", "2", "1"]
//	  - fail: before
//	  - fill_gap: "5"
//	    expect: { case: failure, kind: NETWORK }
//
// Steps either change the server (post, delete, notify, fail), change
// local view state (expand), or run the code under test (load, fill_gap,
// sync_notifications, mark_seen).
//
// # Determinism
//
// Every scenario gets a fresh in-memory store, sequence run ids and an
// in-memory server. The two fetches of a refresh run concurrently, so the
// calls recorded for a step are sorted.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/gap_fill.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
package harness
