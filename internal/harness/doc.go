// Package harness runs editing scenarios against the session state store.
//
// A scenario starts from a project, dispatches a list of actions and checks
// the resulting trace and state. Scenarios are YAML files:
//
//	name: toggle_and_undo
//	description: "A toggled step survives undo/redo"
//	project: fixtures/four_on_floor.json   # optional, relative to the file
//	setup:
//	  - action: project/setTitle
//	    args: { title: "Warm-up" }
//	flow:
//	  - dispatch: project/toggleStep
//	    args: { trackId: drums, pad: KICK, step: 4, velocity: 100 }
//	    expect:
//	      project.tracks.0.drum.patterns.A.lanes.0.steps.4: 100
//	      canUndo: true
//	assertions:
//	  - type: trace_contains
//	    action: project/toggleStep
//	    args: { step: 4 }
//	  - type: final_state
//	    path: project.title
//	    expect: "Warm-up"
//
// Actions are named by their wire type (see state.ActionTypes) and their
// args use the action's JSON field names.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: a value in the final state matches (maps match as subsets)
//
// # State Paths
//
// Paths are dot separated and index into the JSON form of the state.
// Besides the state's own fields, canUndo, canRedo, undoDepth and redoDepth
// expose the history stacks.
//
// # Determinism
//
// Each scenario runs on a fresh store whose sequence clock starts at zero,
// so traces are identical across runs and can be compared with golden files.
package harness
