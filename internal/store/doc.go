// Package store provides the SQLite database behind the sql plugin.
//
// The interface layer uses it two ways:
//   - Generic statements through Execute and Select (sql.execute, sql.select)
//   - A recent-documents list through TouchRecent and ListRecent
//     (recent.touch, recent.list)
//
// The pending-open queue is never stored here. It lives in memory only and
// dies with the process; recording a drained path as "recent" is a decision
// the interface layer makes after it has opened the document.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Recent-document keys are NFC-normalized so that the same file reported
// in decomposed form (as macOS file URLs often are) and composed form maps
// to one row.
package store
