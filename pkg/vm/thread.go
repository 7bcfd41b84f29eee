package vm

import (
	"sync/atomic"

	"github.com/vireo-vm/vireo/pkg/runtime"
)

// Thread is one Java thread, backed by a single goroutine that the Go
// runtime schedules preemptively (there is no cooperative scheduler), per
// spec.md's "Java-thread-per-goroutine" model: java.lang.Thread.start0
// spawns a goroutine running this Thread's call stack, and ordinary Java
// monitors/volatiles map onto the Go memory model's happens-before edges
// the runtime package's Object.Lock/Unlock and the Go scheduler already
// provide — no separate green-thread scheduler is implemented.
type Thread struct {
	ID         int64
	Name       string
	vm         *VM
	Mirror     *runtime.Object // the java.lang.Thread instance, if one exists yet
	frames     []*Frame
	daemon     bool
	priority   int32
	interrupted int32 // atomic flag, checked by blocking natives per spec.md §5
	done       chan struct{}
}

// NewThread allocates a Thread under vm, not yet registered or running.
func NewThread(v *VM, name string) *Thread {
	return &Thread{ID: v.newThreadID(), Name: name, vm: v, priority: 5, done: make(chan struct{})}
}

// Interrupt sets the thread's interrupted flag. The sleep natives observe
// it at entry and while sleeping; Object.wait does not, and no park native
// is registered.
func (t *Thread) Interrupt() { atomic.StoreInt32(&t.interrupted, 1) }

// Interrupted reports and clears the interrupted flag, per
// Thread.interrupted()'s clear-on-read contract; IsInterrupted (below)
// reports without clearing, per Thread.isInterrupted().
func (t *Thread) Interrupted() bool { return atomic.SwapInt32(&t.interrupted, 0) != 0 }

// IsInterrupted reports the flag without clearing it.
func (t *Thread) IsInterrupted() bool { return atomic.LoadInt32(&t.interrupted) != 0 }

// SetDaemon/IsDaemon and SetPriority/Priority expose the thread
// attributes Thread.setDaemon/setPriority0 and their getters mutate.
func (t *Thread) SetDaemon(daemon bool) { t.daemon = daemon }
func (t *Thread) IsDaemon() bool        { return t.daemon }
func (t *Thread) SetPriority(p int32)   { atomic.StoreInt32(&t.priority, p) }
func (t *Thread) Priority() int32       { return atomic.LoadInt32(&t.priority) }

func (t *Thread) pushFrame(f *Frame) { t.frames = append(t.frames, f) }
func (t *Thread) popFrame()          { t.frames = t.frames[:len(t.frames)-1] }
func (t *Thread) currentFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// Frames returns the thread's current call stack, oldest first, for
// reflection natives (Reflection.getCallerClass) that look up their
// Java-level caller. A native runs without a frame of its own, so the last
// element is the method that invoked the native.
func (t *Thread) Frames() []*Frame { return t.frames }

// IsAlive reports whether t's goroutine is still running, the Thread.isAlive0
// native's backing check: done is closed exactly once, by StartThread's
// deferred close, when the run() invocation returns or throws.
func (t *Thread) IsAlive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Depth reports the current call-stack depth, used by stack-overflow
// detection (a fixed limit stands in for -Xss here) and by
// Thread.getStackTrace.
func (t *Thread) Depth() int { return len(t.frames) }

const maxFrameDepth = 4096

// StackTrace renders the current call stack as a slice of
// "Class.method" strings, newest first, for uncaught-exception reporting
// and for java.lang.Throwable.printStackTrace.
func (t *Thread) StackTrace() []string {
	out := make([]string, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		name, _ := f.Class.File().Pool.Utf8At(f.Method.NameIndex)
		out = append(out, f.Class.Name()+"."+name)
	}
	return out
}
