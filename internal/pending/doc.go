// Package pending holds the buffer of file paths the operating system asked
// the application to open before (or while) the interface layer was able to
// act on them.
//
// The buffer has exactly two mutations:
//   - Append: extends the buffer in order (called by the open-file listener)
//   - Drain: returns everything and resets to empty (called by the
//     take_pending_opens command)
//
// Both run under a single mutex. Nothing else happens while the lock is
// held: notification and metrics are the caller's business, after the call
// returns.
//
// # Poisoning
//
// If a critical section panics, the Store is marked poisoned and every later
// call returns ErrPoisoned. The buffer contents are undefined at that point,
// so callers must treat ErrPoisoned as fatal rather than retry.
package pending
