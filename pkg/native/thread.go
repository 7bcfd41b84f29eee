package native

import (
	"time"

	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

func registerThreadNatives(r *Registry) {
	r.Register("java/lang/Thread", "registerNatives", "()V", noop)
	r.Register("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;", threadCurrentThread)
	r.Register("java/lang/Thread", "start0", "()V", threadStart0)
	// Loom renamed the sleep native: sleep(J) through 18; from 19 both
	// sleep0(J) and sleepNanos0(J) (nanosecond argument) are registered.
	r.RegisterRange("java/lang/Thread", "sleep", "(J)V", 0, 18, threadSleep)
	r.RegisterRange("java/lang/Thread", "sleep0", "(J)V", 19, 0, threadSleep)
	r.RegisterRange("java/lang/Thread", "sleepNanos0", "(J)V", 19, 0, threadSleepNanos0)
	r.Register("java/lang/Thread", "yield0", "()V", threadYield0)
	r.Register("java/lang/Thread", "setPriority0", "(I)V", threadSetPriority0)
	r.Register("java/lang/Thread", "setNativeName", "(Ljava/lang/String;)V", threadSetNativeName)
	r.Register("java/lang/Thread", "isAlive0", "()Z", threadIsAlive0)
	r.Register("java/lang/Thread", "interrupt0", "()V", threadInterrupt0)
	r.Register("java/lang/Thread", "isInterrupted", "(Z)Z", threadIsInterrupted)
	r.Register("java/lang/Thread", "holdsLock", "(Ljava/lang/Object;)Z", threadHoldsLock)
}

func threadCurrentThread(vmInst *vm.VM, thread *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	if thread.Mirror == nil {
		return runtime.Null(), nil
	}
	return runtime.Ref(thread.Mirror), nil
}

// threadStart0 spawns the goroutine backing a newly constructed
// java.lang.Thread instance, named from its "name" field when present
// (javac-emitted Thread constructors always set it before start0 is
// reachable).
func threadStart0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok || mirror == nil {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/NullPointerException", "")
	}
	name := "Thread"
	if nameVal, ok := mirror.GetField("name"); ok {
		if s, ok := vm.GoString(refObject(nameVal)); ok {
			name = s
		}
	}
	t := vm.NewThread(vmInst, name)
	if prioVal, ok := mirror.GetField("priority"); ok {
		t.SetPriority(prioVal.I)
	}
	vmInst.StartThread(t, mirror)
	return runtime.Value{}, nil
}

func refObject(v runtime.Value) *runtime.Object {
	obj, _ := v.Ref.(*runtime.Object)
	return obj
}

// threadSleep implements Thread.sleep(long), polling in short slices so an
// interrupt becomes visible promptly rather than only after the full
// duration elapses, per spec.md §5's interrupt-cancellation model.
func threadSleep(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	millis := args[0].L
	if millis < 0 {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/IllegalArgumentException", "timeout value is negative")
	}
	return runtime.Value{}, sleepInterruptible(vmInst, thread, time.Duration(millis)*time.Millisecond)
}

func threadSleepNanos0(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	return runtime.Value{}, sleepInterruptible(vmInst, thread, time.Duration(args[0].L))
}

const sleepSlice = 5 * time.Millisecond

func sleepInterruptible(vmInst *vm.VM, thread *vm.Thread, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		if thread.Interrupted() {
			return vmInst.ThrowNew(vmInst.Boot, "java/lang/InterruptedException", "sleep interrupted")
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}
		time.Sleep(slice)
	}
}

func threadYield0(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Value{}, nil
}

func threadSetPriority0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return runtime.Value{}, nil
	}
	if t, ok := vmInst.ThreadForMirror(mirror); ok {
		t.SetPriority(args[1].I)
	}
	return runtime.Value{}, nil
}

func threadSetNativeName(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return runtime.Value{}, nil
	}
	name, _ := vm.GoString(refObject(args[1]))
	if t, ok := vmInst.ThreadForMirror(mirror); ok {
		t.Name = name
	}
	return runtime.Value{}, nil
}

func threadIsAlive0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return runtime.Bool(false), nil
	}
	t, ok := vmInst.ThreadForMirror(mirror)
	return runtime.Bool(ok && t.IsAlive()), nil
}

func threadInterrupt0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return runtime.Value{}, nil
	}
	if t, ok := vmInst.ThreadForMirror(mirror); ok {
		t.Interrupt()
	}
	return runtime.Value{}, nil
}

func threadIsInterrupted(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return runtime.Bool(false), nil
	}
	t, ok := vmInst.ThreadForMirror(mirror)
	if !ok {
		return runtime.Bool(false), nil
	}
	clear := args[1].I != 0
	if clear {
		return runtime.Bool(t.Interrupted()), nil
	}
	return runtime.Bool(t.IsInterrupted()), nil
}

func threadHoldsLock(_ *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Bool(false), nil
	}
	return runtime.Bool(obj.HeldBy(thread.ID)), nil
}
