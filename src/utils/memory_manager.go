package utils

import (
	"sort"
	"sync"
)

// -----------------------------------------------------------------------------
// MemoryManager keeps the latest items per key in bounded ring buffers.
// -----------------------------------------------------------------------------

type MemoryManager[T any] struct {
	DataStreams   map[string]*RingBuffer[T]
	MaxDataPoints int
	mu            sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMemoryManager[T any](maxDataPoints int) *MemoryManager[T] {
	return &MemoryManager[T]{
		DataStreams:   make(map[string]*RingBuffer[T]),
		MaxDataPoints: maxDataPoints,
	}
}

// -----------------------------------------------------------------------------

// AddDataPoint appends item to the buffer of key, creating it on first use.
func (mm *MemoryManager[T]) AddDataPoint(key string, item T) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	buffer, ok := mm.DataStreams[key]
	if !ok {
		buffer = NewRingBuffer[T](mm.MaxDataPoints)
		mm.DataStreams[key] = buffer
	}
	buffer.Append(item)
}

// -----------------------------------------------------------------------------

// GetLatest returns up to n latest items of key, oldest first. n <= 0 means
// everything stored.
func (mm *MemoryManager[T]) GetLatest(key string, n int) []T {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[key]
	if !ok {
		return []T{}
	}
	if n <= 0 {
		return buffer.GetAll()
	}
	return buffer.GetLatest(n)
}

// -----------------------------------------------------------------------------

// Keys returns the sorted keys that hold data.
func (mm *MemoryManager[T]) Keys() []string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	keys := make([]string, 0, len(mm.DataStreams))
	for k, buffer := range mm.DataStreams {
		if buffer.Size() > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------------

// HasKey reports whether key has a buffer.
func (mm *MemoryManager[T]) HasKey(key string) bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	_, ok := mm.DataStreams[key]
	return ok
}

// -----------------------------------------------------------------------------

// Cleanup drops every buffer.
func (mm *MemoryManager[T]) Cleanup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.DataStreams = make(map[string]*RingBuffer[T])
}
