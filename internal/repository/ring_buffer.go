package repository

import (
	"sync"

	"optionpulse/internal/domain/models"
	domrepo "optionpulse/internal/domain/repository"
)

// RingBuffer keeps the last N prediction results, strict FIFO. Push is only
// called from the collector loop; reads may come from any handler goroutine.
type RingBuffer struct {
	mu    sync.RWMutex
	buf   []*models.PredictionResult
	head  int
	count int
}

func NewRingBuffer(capacity int) domrepo.SnapshotBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]*models.PredictionResult, capacity)}
}

// Push appends r, evicting the oldest entry once the buffer is full.
func (b *RingBuffer) Push(r *models.PredictionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[(b.head+b.count)%len(b.buf)] = r
	if b.count < len(b.buf) {
		b.count++
		return
	}
	b.head = (b.head + 1) % len(b.buf)
}

// LastN returns up to n results, oldest first.
func (b *RingBuffer) LastN(n int) []*models.PredictionResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]*models.PredictionResult, n)
	start := b.count - n
	for i := 0; i < n; i++ {
		out[i] = b.buf[(b.head+start+i)%len(b.buf)]
	}
	return out
}

// All returns every retained result, oldest first.
func (b *RingBuffer) All() []*models.PredictionResult {
	return b.LastN(b.Cap())
}

func (b *RingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

func (b *RingBuffer) Cap() int {
	return len(b.buf)
}
