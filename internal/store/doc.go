// Package store provides SQLite-backed persistence for projects, assets,
// share links, AI generation logs and audio recordings.
//
// # Owner Scoping
//
// Every read and write takes the owner identity and filters on it, so one
// owner can never observe or modify another owner's rows. A row owned by
// someone else is reported as ErrNotFound. Share slugs are the one public
// lookup: GetShare resolves a slug without an owner.
//
// # Documents
//
// Projects are stored as canonical JSON (music.Canonical) together with a
// content revision (music.Revision), so an unchanged save is detectable by
// comparing revisions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Shares and recordings cascade with their parents
package store
