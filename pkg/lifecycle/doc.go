// Package lifecycle drives each session from creation to a live connection.
//
// Start allocates a pending session, opens a protocol handle over the
// session's credentials and then either returns a pairing code (the account
// is not registered yet) or accepts the request and lets the connection come
// up in the background. The first "connection open" event promotes the
// session to persisted storage and enables command dispatch.
//
// Invariants:
//   - One listener per handle; it outlives the HTTP request that created it.
//   - At most one successful promotion per session, however many open events
//     arrive.
//   - Dispatch is enabled once; repeated open events never add listeners.
//   - Nothing is torn down on failure: the handle, the registry entry and the
//     pending directory all stay until the process exits.
package lifecycle
