package runtime

import (
	"fmt"
	"sync"
)

// Class is the minimal view of a loaded class that the runtime package
// needs; pkg/classloader's *Class satisfies it. Kept as an interface here
// to avoid an import cycle (classloader depends on runtime for field
// storage, not the other way around).
type Class interface {
	Name() string
}

// Object is a heap instance: every Java object except arrays. Fields are
// stored by name in a flat map rather than a per-class slot table — the
// teacher's JObject did the same; we additionally add the monitor lock the
// spec's concurrency model requires for monitorenter/monitorexit and for
// volatile field happens-before edges.
type Object struct {
	Class  Class
	fields map[string]Value
	mu     sync.Mutex // object header monitor: recursive via holder+count
	holder int64       // thread id currently holding the monitor, 0 if free
	depth  int         // recursive entry count
	cond   *sync.Cond  // signaled whenever the monitor becomes free (Lock waiters)
	notify *sync.Cond  // signaled by Object.notify/notifyAll (Object.wait waiters)
}

// NewObject allocates an instance of class with an empty field map: no
// field is pre-seeded, so GetField reports a field as not found until
// SetField stores it. Callers populate fields via SetField as constructors
// run.
func NewObject(class Class) *Object {
	o := &Object{Class: class, fields: make(map[string]Value)}
	o.cond = sync.NewCond(&o.mu)
	o.notify = sync.NewCond(&o.mu)
	return o
}

// Snapshot returns a shallow copy of every currently-set field, for
// Object.clone's field-by-field copy.
func (o *Object) Snapshot() map[string]Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]Value, len(o.fields))
	for k, v := range o.fields {
		out[k] = v
	}
	return out
}

func (o *Object) isReference() {}

func (o *Object) String() string {
	if o.Class == nil {
		return "Object@?"
	}
	return fmt.Sprintf("%s@%p", o.Class.Name(), o)
}

// GetField reads a field by name; ok is false when the field has never
// been set on this object (the interpreter's getfield then falls back to
// the descriptor's zero value via zeroValueForDescriptor).
func (o *Object) GetField(name string) (Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.fields[name]
	return v, ok
}

func (o *Object) SetField(name string, v Value) {
	o.mu.Lock()
	o.fields[name] = v
	o.mu.Unlock()
}

// CompareAndSwapField atomically replaces name's value with next if its
// current value equals expected, returning whether the swap happened.
// Comparison is by the numeric/reference payload the Kind says is live —
// this is jdk.internal.misc.Unsafe's compareAndSet{Int,Long,Reference}'s
// backing primitive (spec.md §9's Open Question: vireo runs with real
// goroutine parallelism, so this must be genuinely atomic, not merely
// safe under a single-threaded cooperative-scheduling assumption — the
// object's own mutex, already held for every field access, provides that).
func (o *Object) CompareAndSwapField(name string, expected, next Value) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cur := o.fields[name]
	if !valuesEqual(cur, expected) {
		return false
	}
	o.fields[name] = next
	return true
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.I == b.I
	case KindLong:
		return a.L == b.L
	case KindFloat:
		return a.F == b.F
	case KindDouble:
		return a.D == b.D
	default:
		return a.Ref == b.Ref
	}
}

// Lock acquires the object's monitor on behalf of threadID, recursively:
// a thread that already holds it just increments the depth counter
// (monitorenter/monitorexit section 2.11.10, and synchronized methods).
func (o *Object) Lock(threadID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.holder != 0 && o.holder != threadID {
		o.cond.Wait()
	}
	o.holder = threadID
	o.depth++
}

// Unlock releases one level of recursive ownership, waking any waiter once
// the monitor becomes free. Calling Unlock from a thread that does not
// hold the monitor is a host bug the caller must have already rejected via
// IllegalMonitorStateException before reaching here.
func (o *Object) Unlock(threadID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth--
	if o.depth == 0 {
		o.holder = 0
		o.cond.Signal()
	}
}

// HeldBy reports whether threadID currently owns the monitor, used to
// validate athrow-time monitor cleanup and Thread.holdsLock.
func (o *Object) HeldBy(threadID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.holder == threadID
}

// Notify wakes one thread blocked in Wait on this object's monitor, the
// Object.notify() native.
func (o *Object) Notify() {
	o.mu.Lock()
	o.notify.Signal()
	o.mu.Unlock()
}

// NotifyAll wakes every thread blocked in Wait, the Object.notifyAll()
// native.
func (o *Object) NotifyAll() {
	o.mu.Lock()
	o.notify.Broadcast()
	o.mu.Unlock()
}

// Wait implements Object.wait(): the calling thread, which must already
// hold the monitor, releases it entirely (remembering its recursive
// depth), blocks until notified, and reacquires the monitor at the same
// depth before returning — per section 2.11.10's wait/notify contract.
// There is no timeout and no interrupt check: this blocks until signaled,
// like a plain wait(). The Object.wait(J) native calls it directly and
// ignores its millis argument, and an interrupt does not wake a waiter.
func (o *Object) Wait(threadID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	savedDepth := o.depth
	o.depth = 0
	o.holder = 0
	o.cond.Signal()
	o.notify.Wait()
	for o.holder != 0 && o.holder != threadID {
		o.cond.Wait()
	}
	o.holder = threadID
	o.depth = savedDepth
}
