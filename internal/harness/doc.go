// Package harness runs open-request scenarios against a real host and
// records a deterministic trace of what every consumer observed.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: startup_race
//	description: "Files opened before any consumer attaches wait for a drain"
//	listener: native
//	steps:
//	  - deliver: ["file:///docs/a.txt", "file:///docs/b.txt"]
//	  - attach: ui
//	  - idle: ui
//	  - drain: ["/docs/a.txt", "/docs/b.txt"]
//	  - drain: []
//
// # Step Types
//
// Each step sets exactly one of:
//
//   - deliver: hands one open-file signal carrying the listed locators to the listener
//   - attach: subscribes a named consumer to file-opened events
//   - detach: unsubscribes a named consumer
//   - received: takes the next event of a consumer and checks its paths
//   - idle: checks that a consumer has no event waiting
//   - drain: calls take_pending_opens and checks the returned paths
//
// A drain step with no value (`drain:` or `drain: ~`) records the result
// without checking it.
//
// # Deterministic Testing
//
// Event ids come from a sequence generator (evt-1, evt-2, ...) and event
// times from testutil.Clock, so traces are identical across runs and can be
// compared against golden files in testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/startup_race.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
