package queue

import (
	"fmt"
	"sync"
)

// MpmcOp tags the operation an [MpmcResponse] answers.
type MpmcOp int

// Mpmc façade operations.
const (
	MpmcOpAdd MpmcOp = iota
	MpmcOpNext
	MpmcOpLength
	MpmcOpDiskSize
	MpmcOpGetLabels
	MpmcOpRemoveLabel
	MpmcOpStop
)

// MpmcResponse is the result of one mpmc façade operation.
//
// Op identifies the request; only the fields for that op are meaningful.
type MpmcResponse struct {
	Op  MpmcOp
	Err error

	// Values and Expired are the Next result.
	Values  [][]byte
	Expired bool

	// Length is the Length result.
	Length uint64

	// Size is the DiskSize result, in bytes.
	Size int64

	// Labels is the GetLabels result.
	Labels []string

	// Removed is the RemoveLabel result.
	Removed bool
}

type mpmcRequest struct {
	op     MpmcOp
	values [][]byte
	max    int
	label  string
	pos    StartPosition
	reply  chan MpmcResponse
}

// AsyncMpmc runs an [Mpmc] on a dedicated worker goroutine.
//
// Semantics mirror [AsyncBounded]: strictly serial application in
// submission order, bounded submission channel, one [Future] per request.
// Successive Next calls for one label therefore observe a monotonically
// advancing cursor regardless of which goroutine submitted them.
type AsyncMpmc struct {
	reqs      chan mpmcRequest
	done      chan struct{}
	closeOnce sync.Once
}

// OpenAsyncMpmc opens an mpmc queue and starts its worker.
//
// maxInflightOps bounds the submission channel; it must be >= 1.
func OpenAsyncMpmc(opts MpmcOptions, maxInflightOps int) (*AsyncMpmc, error) {
	if maxInflightOps < 1 {
		return nil, fmt.Errorf("max_inflight_ops must be >= 1: %w", ErrInvalidInput)
	}

	q, err := OpenMpmc(opts)
	if err != nil {
		return nil, err
	}

	a := &AsyncMpmc{
		reqs: make(chan mpmcRequest, maxInflightOps),
		done: make(chan struct{}),
	}

	go a.serve(q)

	return a, nil
}

func (a *AsyncMpmc) serve(q *Mpmc) {
	defer close(a.done)

	defer func() { _ = q.Close() }()

	for req := range a.reqs {
		resp := MpmcResponse{Op: req.op}

		switch req.op {
		case MpmcOpAdd:
			resp.Err = q.Add(req.values)
		case MpmcOpNext:
			resp.Values, resp.Expired, resp.Err = q.Next(req.max, req.label, req.pos)
		case MpmcOpLength:
			resp.Length = q.Len()
		case MpmcOpDiskSize:
			resp.Size, resp.Err = q.DiskSize()
		case MpmcOpGetLabels:
			resp.Labels = q.Labels()
		case MpmcOpRemoveLabel:
			resp.Removed, resp.Err = q.RemoveLabel(req.label)
		case MpmcOpStop:
			req.reply <- resp

			return
		}

		req.reply <- resp
	}
}

func (a *AsyncMpmc) submit(req mpmcRequest) (*Future[MpmcResponse], error) {
	req.reply = make(chan MpmcResponse, 1)

	// See AsyncBounded.submit: done is checked on its own first.
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

// Add submits an ordered batch of values.
//
// The payloads are copied before the submission hop; the caller may reuse
// its buffers immediately.
func (a *AsyncMpmc) Add(values [][]byte) (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpAdd, values: copyValues(values)})
}

// Next submits a read of up to maxElts entries for label.
func (a *AsyncMpmc) Next(maxElts int, label string, startPosition StartPosition) (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpNext, max: maxElts, label: label, pos: startPosition})
}

// Len submits a length query.
func (a *AsyncMpmc) Len() (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpLength})
}

// DiskSize submits a disk-size query.
func (a *AsyncMpmc) DiskSize() (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpDiskSize})
}

// GetLabels submits a label listing.
func (a *AsyncMpmc) GetLabels() (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpGetLabels})
}

// RemoveLabel submits removal of a consumer cursor.
func (a *AsyncMpmc) RemoveLabel(label string) (*Future[MpmcResponse], error) {
	return a.submit(mpmcRequest{op: MpmcOpRemoveLabel, label: label})
}

// Healthy reports whether the worker is still running.
func (a *AsyncMpmc) Healthy() bool {
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// InflightOps returns the number of submitted operations the worker has not
// yet picked up.
func (a *AsyncMpmc) InflightOps() int {
	return len(a.reqs)
}

// Close stops the worker and closes the underlying queue.
//
// Idempotent; concurrent and subsequent submissions fail with
// [ErrUnhealthy].
func (a *AsyncMpmc) Close() error {
	a.closeOnce.Do(func() {
		fut, err := a.submit(mpmcRequest{op: MpmcOpStop})
		if err != nil {
			return
		}

		fut.Get()
		<-a.done
	})

	return nil
}
