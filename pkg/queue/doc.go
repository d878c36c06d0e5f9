// Package queue provides two durable queue flavors on one embedded
// key-value store.
//
// [Bounded] is a fixed-capacity FIFO of opaque byte payloads. Entries are
// consumed destructively in push order and survive process restarts.
//
// [Mpmc] is a multi-consumer queue whose entries age out after a configured
// TTL. Reads never remove entries; each named consumer ("label") keeps its
// own durable cursor, and the store drops entries on its own once they
// expire. The queue detects entries that vanished under a cursor and reports
// the loss to the affected consumer.
//
// # Handles
//
// A core handle ([Bounded], [Mpmc]) is not safe for concurrent use. Wrap it
// for sharing:
//
//   - [BlockingBounded] / [BlockingMpmc] guard one handle with a mutex.
//   - [AsyncBounded] / [AsyncMpmc] move the handle onto a dedicated worker
//     goroutine and hand out [Future] results, so callers never block on
//     disk I/O.
//
// # Error Handling
//
// Failures are classified by sentinel errors ([ErrFull], [ErrStorage], ...).
// Callers classify with errors.Is; messages carry context.
//
// A pop or next that finds nothing is not an error: it returns an empty
// batch. A next that lost entries to expiry returns an empty (or truncated
// from the front) batch together with an expired signal.
package queue
