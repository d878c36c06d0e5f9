package queue

import "sync"

// BlockingBounded shares one [Bounded] across goroutines behind a mutex.
//
// Every operation holds the lock for exactly one core call; operations are
// mutually exclusive and each blocks its caller for the duration of the
// disk I/O. Use [AsyncBounded] to keep I/O off the caller's goroutine.
type BlockingBounded struct {
	mu sync.Mutex
	q  *Bounded
}

// OpenBlockingBounded opens a bounded queue wrapped for shared use.
func OpenBlockingBounded(opts BoundedOptions) (*BlockingBounded, error) {
	q, err := OpenBounded(opts)
	if err != nil {
		return nil, err
	}

	return &BlockingBounded{q: q}, nil
}

// Push appends values in order. See [Bounded.Push].
func (b *BlockingBounded) Push(values [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Push(values)
}

// Pop removes up to maxElts entries. See [Bounded.Pop].
func (b *BlockingBounded) Pop(maxElts int) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Pop(maxElts)
}

// Len returns the number of live entries.
func (b *BlockingBounded) Len() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Len()
}

// IsEmpty reports whether the queue holds no entries.
func (b *BlockingBounded) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.IsEmpty()
}

// PayloadSize returns the byte sum of all live payloads.
func (b *BlockingBounded) PayloadSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.PayloadSize()
}

// DiskSize returns the recursive byte size of the queue directory.
func (b *BlockingBounded) DiskSize() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.DiskSize()
}

// Close releases the queue. Idempotent.
func (b *BlockingBounded) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Close()
}

// BlockingMpmc shares one [Mpmc] across goroutines behind a mutex.
type BlockingMpmc struct {
	mu sync.Mutex
	q  *Mpmc
}

// OpenBlockingMpmc opens an mpmc queue wrapped for shared use.
func OpenBlockingMpmc(opts MpmcOptions) (*BlockingMpmc, error) {
	q, err := OpenMpmc(opts)
	if err != nil {
		return nil, err
	}

	return &BlockingMpmc{q: q}, nil
}

// Add appends values in order. See [Mpmc.Add].
func (b *BlockingMpmc) Add(values [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Add(values)
}

// Next reads up to maxElts entries for label. See [Mpmc.Next].
func (b *BlockingMpmc) Next(maxElts int, label string, startPosition StartPosition) ([][]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Next(maxElts, label, startPosition)
}

// Len returns the number of live entries.
func (b *BlockingMpmc) Len() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Len()
}

// IsEmpty reports whether the queue holds no entries.
func (b *BlockingMpmc) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.IsEmpty()
}

// DiskSize returns the recursive byte size of the queue directory.
func (b *BlockingMpmc) DiskSize() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.DiskSize()
}

// Labels returns the known consumer labels.
func (b *BlockingMpmc) Labels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Labels()
}

// RemoveLabel deletes a consumer cursor. See [Mpmc.RemoveLabel].
func (b *BlockingMpmc) RemoveLabel(label string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.RemoveLabel(label)
}

// Close releases the queue. Idempotent.
func (b *BlockingMpmc) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.q.Close()
}
