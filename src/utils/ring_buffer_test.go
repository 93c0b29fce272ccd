package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Empty(t, rb.GetAll())

	for i := 1; i <= 5; i++ {
		rb.Append(i)
	}
	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Size())
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, []int{4, 5}, rb.GetLatest(2))
	assert.Equal(t, []int{3, 4, 5}, rb.GetLatest(10))

	rb.Clear()
	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, 3, rb.Capacity())
}

func TestMemoryManagerKeepsBuffersPerKey(t *testing.T) {
	mm := NewMemoryManager[string](2)
	mm.AddDataPoint("quote", "a")
	mm.AddDataPoint("quote", "b")
	mm.AddDataPoint("quote", "c")
	mm.AddDataPoint("bars", "x")

	assert.Equal(t, []string{"b", "c"}, mm.GetLatest("quote", 0))
	assert.Equal(t, []string{"c"}, mm.GetLatest("quote", 1))
	assert.Equal(t, []string{}, mm.GetLatest("order_book", 0))
	assert.Equal(t, []string{"bars", "quote"}, mm.Keys())
	assert.True(t, mm.HasKey("bars"))

	mm.Cleanup()
	assert.Empty(t, mm.Keys())
}
