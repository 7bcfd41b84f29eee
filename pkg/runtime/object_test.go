package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClass string

func (c fakeClass) Name() string { return string(c) }

func TestObjectFieldRoundTrip(t *testing.T) {
	o := NewObject(fakeClass("com/example/Point"))
	o.SetField("x", Int(3))
	o.SetField("y", Int(4))

	x, ok := o.GetField("x")
	require.True(t, ok)
	assert.Equal(t, int32(3), x.I)

	_, ok = o.GetField("z")
	assert.False(t, ok, "an unset field reports not-found rather than a zero Value")
}

func TestObjectSnapshotIsACopy(t *testing.T) {
	o := NewObject(fakeClass("com/example/Point"))
	o.SetField("x", Int(1))

	snap := o.Snapshot()
	snap["x"] = Int(99)

	x, _ := o.GetField("x")
	assert.Equal(t, int32(1), x.I, "mutating a snapshot must not mutate the object")
}

func TestCompareAndSwapField(t *testing.T) {
	o := NewObject(fakeClass("com/example/Counter"))
	o.SetField("count", Int(0))

	assert.True(t, o.CompareAndSwapField("count", Int(0), Int(1)))
	assert.False(t, o.CompareAndSwapField("count", Int(0), Int(2)), "stale expected value must fail the swap")

	v, _ := o.GetField("count")
	assert.Equal(t, int32(1), v.I)
}

func TestCompareAndSwapFieldConcurrent(t *testing.T) {
	o := NewObject(fakeClass("com/example/Counter"))
	o.SetField("count", Int(0))

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for {
				cur, _ := o.GetField("count")
				if o.CompareAndSwapField("count", cur, Int(cur.I+1)) {
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _ := o.GetField("count")
	assert.Equal(t, int32(goroutines), v.I, "every goroutine's increment must land exactly once under real parallelism")
}

func TestMonitorRecursiveLock(t *testing.T) {
	o := NewObject(fakeClass("com/example/Lock"))
	const threadID = 1

	o.Lock(threadID)
	o.Lock(threadID) // reentrant
	assert.True(t, o.HeldBy(threadID))

	o.Unlock(threadID)
	assert.True(t, o.HeldBy(threadID), "still held after only one of two recursive unlocks")
	o.Unlock(threadID)
	assert.False(t, o.HeldBy(threadID))
}

func TestMonitorBlocksOtherThread(t *testing.T) {
	o := NewObject(fakeClass("com/example/Lock"))
	o.Lock(1)

	acquired := make(chan struct{})
	go func() {
		o.Lock(2)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("thread 2 acquired the monitor while thread 1 still held it")
	case <-time.After(50 * time.Millisecond):
	}

	o.Unlock(1)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("thread 2 never acquired the monitor after it was released")
	}
}

func TestWaitNotify(t *testing.T) {
	o := NewObject(fakeClass("com/example/Signal"))
	const waiter, notifier = int64(1), int64(2)
	woke := make(chan struct{})

	go func() {
		o.Lock(waiter)
		o.Wait(waiter) // releases the monitor entirely while blocked
		close(woke)
		o.Unlock(waiter)
	}()

	// Give the waiter time to enter Wait (and release the monitor) before
	// notifying, otherwise Notify could fire before anyone is listening.
	time.Sleep(20 * time.Millisecond)
	o.Lock(notifier)
	o.Notify()
	o.Unlock(notifier)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken by Notify")
	}
}
