package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextCache_UnseenRoomIsEmpty(t *testing.T) {
	c := NewContextCache()
	assert.Equal(t, "", c.Snapshot(42))
}

func TestContextCache_SnapshotPreservesOrder(t *testing.T) {
	c := NewContextCache()
	c.Append(1, "first")
	c.Append(1, "second")
	c.Append(1, "third")

	assert.Equal(t, "first\nsecond\nthird", c.Snapshot(1))
}

func TestContextCache_EvictsOldestBeyondWindow(t *testing.T) {
	c := NewContextCache()
	for i := 1; i <= 11; i++ {
		c.Append(1, fmt.Sprintf("msg-%d", i))
	}

	snapshot := c.Snapshot(1)
	lines := strings.Split(snapshot, "\n")
	assert.Len(t, lines, 10)
	assert.Equal(t, "msg-2", lines[0], "the 11th append must evict entry #1")
	assert.Equal(t, "msg-11", lines[9])
	assert.NotContains(t, snapshot, "msg-1\n")
}

func TestContextCache_RoomsAreIndependent(t *testing.T) {
	c := NewContextCache()
	c.Append(1, "room one")
	c.Append(2, "room two")

	assert.Equal(t, "room one", c.Snapshot(1))
	assert.Equal(t, "room two", c.Snapshot(2))
}

func TestContextCache_ConcurrentAppends(t *testing.T) {
	c := NewContextCache()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Append(1, fmt.Sprintf("msg-%d", n))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(c.Snapshot(1), "\n")
	assert.Len(t, lines, 10, "window must never exceed its bound under concurrency")
}
