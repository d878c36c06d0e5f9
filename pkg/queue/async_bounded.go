package queue

import (
	"fmt"
	"sync"
)

// BoundedOp tags the operation a [BoundedResponse] answers.
type BoundedOp int

// Bounded façade operations.
const (
	BoundedOpPush BoundedOp = iota
	BoundedOpPop
	BoundedOpLength
	BoundedOpPayloadSize
	BoundedOpDiskSize
	BoundedOpStop
)

// BoundedResponse is the result of one bounded façade operation.
//
// Op identifies the request; only the fields for that op are meaningful.
type BoundedResponse struct {
	Op  BoundedOp
	Err error

	// Values is the Pop result.
	Values [][]byte

	// Length is the Length result.
	Length uint64

	// Size is the PayloadSize or DiskSize result, in bytes.
	Size int64
}

type boundedRequest struct {
	op     BoundedOp
	values [][]byte
	max    int
	reply  chan BoundedResponse
}

// AsyncBounded runs a [Bounded] on a dedicated worker goroutine.
//
// The worker owns the queue outright: requests are delivered in submission
// order over a bounded channel and applied strictly serially, and each
// result comes back through a per-request [Future]. Submitting blocks only
// when max-inflight operations are already queued.
//
// Unlike its core queue, an AsyncBounded is safe for concurrent use.
//
// The worker exits only when [AsyncBounded.Close] delivers the stop
// request; a dropped Future cannot stall it, because replies go into a
// buffered channel the façade owns.
type AsyncBounded struct {
	reqs      chan boundedRequest
	done      chan struct{}
	closeOnce sync.Once
}

// OpenAsyncBounded opens a bounded queue and starts its worker.
//
// maxInflightOps bounds the submission channel; it must be >= 1.
func OpenAsyncBounded(opts BoundedOptions, maxInflightOps int) (*AsyncBounded, error) {
	if maxInflightOps < 1 {
		return nil, fmt.Errorf("max_inflight_ops must be >= 1: %w", ErrInvalidInput)
	}

	q, err := OpenBounded(opts)
	if err != nil {
		return nil, err
	}

	a := &AsyncBounded{
		reqs: make(chan boundedRequest, maxInflightOps),
		done: make(chan struct{}),
	}

	go a.serve(q)

	return a, nil
}

func (a *AsyncBounded) serve(q *Bounded) {
	defer close(a.done)

	defer func() { _ = q.Close() }()

	for req := range a.reqs {
		resp := BoundedResponse{Op: req.op}

		switch req.op {
		case BoundedOpPush:
			resp.Err = q.Push(req.values)
		case BoundedOpPop:
			resp.Values, resp.Err = q.Pop(req.max)
		case BoundedOpLength:
			resp.Length = q.Len()
		case BoundedOpPayloadSize:
			resp.Size = int64(q.PayloadSize())
		case BoundedOpDiskSize:
			resp.Size, resp.Err = q.DiskSize()
		case BoundedOpStop:
			req.reply <- resp

			return
		}

		req.reply <- resp
	}
}

func (a *AsyncBounded) submit(req boundedRequest) (*Future[BoundedResponse], error) {
	req.reply = make(chan BoundedResponse, 1)

	// Check done on its own first: a select with both cases ready picks
	// one at random, which would accept requests after the worker exited.
	select {
	case <-a.done:
		return nil, ErrUnhealthy
	default:
	}

	select {
	case a.reqs <- req:
		return newFuture(req.reply), nil
	case <-a.done:
		return nil, ErrUnhealthy
	}
}

// Push submits an ordered batch of values.
//
// The payloads are copied before the submission hop; the caller may reuse
// its buffers immediately.
func (a *AsyncBounded) Push(values [][]byte) (*Future[BoundedResponse], error) {
	return a.submit(boundedRequest{op: BoundedOpPush, values: copyValues(values)})
}

// Pop submits a pop of up to maxElts entries.
func (a *AsyncBounded) Pop(maxElts int) (*Future[BoundedResponse], error) {
	return a.submit(boundedRequest{op: BoundedOpPop, max: maxElts})
}

// Len submits a length query.
func (a *AsyncBounded) Len() (*Future[BoundedResponse], error) {
	return a.submit(boundedRequest{op: BoundedOpLength})
}

// PayloadSize submits a payload-size query.
func (a *AsyncBounded) PayloadSize() (*Future[BoundedResponse], error) {
	return a.submit(boundedRequest{op: BoundedOpPayloadSize})
}

// DiskSize submits a disk-size query.
func (a *AsyncBounded) DiskSize() (*Future[BoundedResponse], error) {
	return a.submit(boundedRequest{op: BoundedOpDiskSize})
}

// Healthy reports whether the worker is still running.
//
// After [AsyncBounded.Close] (or once it is in progress far enough that the
// worker exited) every submission fails with [ErrUnhealthy].
func (a *AsyncBounded) Healthy() bool {
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// InflightOps returns the number of submitted operations the worker has not
// yet picked up.
func (a *AsyncBounded) InflightOps() int {
	return len(a.reqs)
}

// Close stops the worker and closes the underlying queue.
//
// It submits the stop request, waits for its acknowledgement and then for
// the worker to exit. Idempotent; concurrent and subsequent submissions
// fail with [ErrUnhealthy].
func (a *AsyncBounded) Close() error {
	a.closeOnce.Do(func() {
		fut, err := a.submit(boundedRequest{op: BoundedOpStop})
		if err != nil {
			// The worker is already gone.
			return
		}

		fut.Get()
		<-a.done
	})

	return nil
}

// copyValues deep-copies a batch so the façade owns the payload bytes.
func copyValues(values [][]byte) [][]byte {
	owned := make([][]byte, len(values))
	for i, v := range values {
		owned[i] = append([]byte(nil), v...)
	}

	return owned
}
