// Package state implements the beatlab application state core: a pure
// reducer over a single AppState value, bounded undo/redo history, and a
// Store that serializes dispatch.
//
// ARCHITECTURE:
//
// Reduce(state, action) is a total function. Every action belongs to exactly
// one slice (audio, ui, project, selection, transport, history) and only that
// slice changes. Unknown actions return the input unchanged.
//
// History capture happens in one place (reduce with capture=true). The
// allow-list is the set of project actions for which Undoable returns true.
// Undo and Redo only touch Project, the two stacks and IsDirty.
//
// Store dispatch is single-writer: actions are queued FIFO and applied one at
// a time, and subscribers see each committed (prev, next) pair in order.
// Store.Dispatch returns once its action is applied, whichever goroutine
// calls it. Subscribers queue follow-ups through Commit.Dispatch; follow-ups
// of an undo or redo are applied without history capture.
package state
