package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_FiresInOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []string

	m.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(50*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(50*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, epoch.Add(1100*time.Millisecond), m.Now())
}

func TestManual_StopAndNested(t *testing.T) {
	m := NewManual(epoch)
	fired := 0

	timer := m.AfterFunc(10*time.Millisecond, func() { fired++ })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.AfterFunc(10*time.Millisecond, func() {
		m.AfterFunc(10*time.Millisecond, func() { fired += 10 })
	})
	m.Advance(25 * time.Millisecond)
	assert.Equal(t, 10, fired)
}

func TestGroup_StopAll(t *testing.T) {
	m := NewManual(epoch)
	g := NewGroup(m)
	fired := 0

	g.AfterFunc(10*time.Millisecond, func() { fired++ })
	g.AfterFunc(20*time.Millisecond, func() { fired++ })
	assert.Equal(t, 2, g.Pending())

	m.Advance(15 * time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, g.Pending())

	g.StopAll()
	m.Advance(time.Second)
	assert.Equal(t, 1, fired)

	g.AfterFunc(time.Millisecond, func() { fired++ })
	m.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, g.Pending())
}

func TestLocked_RunsUnderLock(t *testing.T) {
	var mu sync.Mutex
	s := NewLocked(&mu)
	done := make(chan bool, 1)

	mu.Lock()
	s.AfterFunc(time.Millisecond, func() {
		done <- true
	})
	select {
	case <-done:
		t.Fatal("callback ran while lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	mu.Unlock()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not run")
	}
}
