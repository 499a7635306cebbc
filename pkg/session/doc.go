// Package session keeps per-session credential directories on disk.
//
// A session starts in the pending area and is promoted to the persisted area
// once its first connection opens.
//
// Invariants:
//   - Session ids are path-safe; they never contain separators, "..", or NUL.
//   - Promote is a no-op when the pending directory is absent, so a repeated
//     call after a successful promotion never fails.
//   - The store never interprets credential contents.
//
// Usage:
//
//	store := session.NewStore("./temp", "./sessions")
//	_ = store.EnsureRootDirs()
//	id, _ := session.NewID()
//	_, _ = store.CreatePending(id)
//	_, _ = store.Promote(ctx, id)
package session
