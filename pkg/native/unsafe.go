package native

import (
	"sync"
	"sync/atomic"

	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

// Field-offset bookkeeping. jdk.internal.misc.Unsafe's offset-based
// accessors identify a field by an opaque long handed out by
// objectFieldOffset1 and later passed back into get*/put*/compareAndSet*
// without the field name — vireo's Object stores fields by name rather
// than by a per-class slot layout (pkg/runtime/object.go), so the offset
// this registry hands out is just an interned id for the field name,
// good across every class (name collisions between unrelated classes'
// fields are harmless: both resolve to the same Go map key, the same way
// two classes' same-named fields would if they were ever compared by
// Unsafe across instances of different types, which no correct caller
// does).
var (
	fieldOffsetsMu sync.Mutex
	fieldOffsets   = map[string]int64{}
	fieldNames     = map[int64]string{}
	nextOffset     int64 = 16 // mimic a nonzero object-header size
)

func offsetForField(name string) int64 {
	fieldOffsetsMu.Lock()
	defer fieldOffsetsMu.Unlock()
	if off, ok := fieldOffsets[name]; ok {
		return off
	}
	off := atomic.AddInt64(&nextOffset, 8)
	fieldOffsets[name] = off
	fieldNames[off] = name
	return off
}

func fieldForOffset(offset int64) (string, bool) {
	fieldOffsetsMu.Lock()
	defer fieldOffsetsMu.Unlock()
	name, ok := fieldNames[offset]
	return name, ok
}

func registerUnsafeNatives(r *Registry) {
	const cls = "jdk/internal/misc/Unsafe"
	r.Register(cls, "registerNatives", "()V", noop)
	r.Register(cls, "objectFieldOffset1", "(Ljava/lang/Class;Ljava/lang/String;)J", unsafeObjectFieldOffset1)

	r.Register(cls, "compareAndSetInt", "(Ljava/lang/Object;JII)Z", unsafeCompareAndSetInt)
	r.Register(cls, "compareAndSetLong", "(Ljava/lang/Object;JJJ)Z", unsafeCompareAndSetLong)
	r.Register(cls, "compareAndSetReference", "(Ljava/lang/Object;JLjava/lang/Object;Ljava/lang/Object;)Z", unsafeCompareAndSetReference)

	r.Register(cls, "getIntVolatile", "(Ljava/lang/Object;J)I", unsafeGetIntVolatile)
	r.Register(cls, "putIntVolatile", "(Ljava/lang/Object;JI)V", unsafePutIntVolatile)
	r.Register(cls, "getLongVolatile", "(Ljava/lang/Object;J)J", unsafeGetLongVolatile)
	r.Register(cls, "putLongVolatile", "(Ljava/lang/Object;JJ)V", unsafePutLongVolatile)
	r.Register(cls, "getReferenceVolatile", "(Ljava/lang/Object;J)Ljava/lang/Object;", unsafeGetReferenceVolatile)
	r.Register(cls, "putReferenceVolatile", "(Ljava/lang/Object;JLjava/lang/Object;)V", unsafePutReferenceVolatile)
	// Pre-JDK9 class libraries name these accessors without "Reference".
	r.Register(cls, "getObjectVolatile", "(Ljava/lang/Object;J)Ljava/lang/Object;", unsafeGetReferenceVolatile)
	r.Register(cls, "putObjectVolatile", "(Ljava/lang/Object;JLjava/lang/Object;)V", unsafePutReferenceVolatile)

	// Non-volatile put*: per spec.md §9's Open Question, these write the
	// given value at the field the offset names, not the teacher
	// lineage's "replace the whole object" placeholder.
	r.Register(cls, "putInt", "(Ljava/lang/Object;JI)V", unsafePutIntVolatile)
	r.Register(cls, "getInt", "(Ljava/lang/Object;J)I", unsafeGetIntVolatile)
	r.Register(cls, "putLong", "(Ljava/lang/Object;JJ)V", unsafePutLongVolatile)
	r.Register(cls, "getLong", "(Ljava/lang/Object;J)J", unsafeGetLongVolatile)
	r.Register(cls, "putReference", "(Ljava/lang/Object;JLjava/lang/Object;)V", unsafePutReferenceVolatile)
	r.Register(cls, "getReference", "(Ljava/lang/Object;J)Ljava/lang/Object;", unsafeGetReferenceVolatile)

	r.Register(cls, "allocateMemory0", "(J)J", unsafeAllocateMemory0)
	r.Register(cls, "freeMemory0", "(J)V", unsafeFreeMemory0)
	r.Register(cls, "addressSize0", "()I", unsafeAddressSize0)
	r.Register(cls, "isBigEndian0", "()Z", unsafeIsBigEndian0)
	r.Register(cls, "loadFence", "()V", noop)
	r.Register(cls, "storeFence", "()V", noop)
	r.Register(cls, "fullFence", "()V", noop)
}

func unsafeObjectFieldOffset1(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	nameObj, _ := args[2].Ref.(*runtime.Object)
	name, _ := vm.GoString(nameObj)
	return runtime.Long(offsetForField(name)), nil
}

func unsafeTargetObject(args []runtime.Value) (*runtime.Object, int64, bool) {
	obj, ok := args[1].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return nil, 0, false
	}
	return obj, args[2].L, true
}

func unsafeCompareAndSetInt(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Bool(false), nil
	}
	name, ok := fieldForOffset(offset)
	if !ok {
		return runtime.Bool(false), nil
	}
	swapped := obj.CompareAndSwapField(name, runtime.Int(args[3].I), runtime.Int(args[4].I))
	return runtime.Bool(swapped), nil
}

func unsafeCompareAndSetLong(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Bool(false), nil
	}
	name, ok := fieldForOffset(offset)
	if !ok {
		return runtime.Bool(false), nil
	}
	swapped := obj.CompareAndSwapField(name, runtime.Long(args[3].L), runtime.Long(args[4].L))
	return runtime.Bool(swapped), nil
}

func unsafeCompareAndSetReference(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Bool(false), nil
	}
	name, ok := fieldForOffset(offset)
	if !ok {
		return runtime.Bool(false), nil
	}
	swapped := obj.CompareAndSwapField(name, runtime.Ref(args[3].Ref), runtime.Ref(args[4].Ref))
	return runtime.Bool(swapped), nil
}

func unsafeGetIntVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Int(0), nil
	}
	if name, ok := fieldForOffset(offset); ok {
		if v, ok := obj.GetField(name); ok {
			return v, nil
		}
	}
	return runtime.Int(0), nil
}

func unsafePutIntVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Value{}, nil
	}
	if name, ok := fieldForOffset(offset); ok {
		obj.SetField(name, runtime.Int(args[3].I))
	}
	return runtime.Value{}, nil
}

func unsafeGetLongVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Long(0), nil
	}
	if name, ok := fieldForOffset(offset); ok {
		if v, ok := obj.GetField(name); ok {
			return v, nil
		}
	}
	return runtime.Long(0), nil
}

func unsafePutLongVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Value{}, nil
	}
	if name, ok := fieldForOffset(offset); ok {
		obj.SetField(name, runtime.Long(args[3].L))
	}
	return runtime.Value{}, nil
}

func unsafeGetReferenceVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Null(), nil
	}
	if name, ok := fieldForOffset(offset); ok {
		if v, ok := obj.GetField(name); ok {
			return v, nil
		}
	}
	return runtime.Null(), nil
}

func unsafePutReferenceVolatile(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, offset, ok := unsafeTargetObject(args)
	if !ok {
		return runtime.Value{}, nil
	}
	if name, ok := fieldForOffset(offset); ok {
		obj.SetField(name, runtime.Ref(args[3].Ref))
	}
	return runtime.Value{}, nil
}

// off-heap memory arena: allocateMemory0/freeMemory0 back a handful of
// direct-buffer bootstrap paths (java.nio.Bits touches these during
// class-library init on some JDK versions); the backing storage is a
// plain Go byte slice rather than a real malloc'd region since nothing
// else in vireo reads raw memory by address.
var (
	offheapMu   sync.Mutex
	offheap     = map[int64][]byte{}
	nextAddress int64 = 1
)

func unsafeAllocateMemory0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	size := args[1].L
	offheapMu.Lock()
	addr := nextAddress
	nextAddress += size + 1
	offheap[addr] = make([]byte, size)
	offheapMu.Unlock()
	return runtime.Long(addr), nil
}

func unsafeFreeMemory0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	addr := args[1].L
	offheapMu.Lock()
	delete(offheap, addr)
	offheapMu.Unlock()
	return runtime.Value{}, nil
}

func unsafeAddressSize0(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Int(8), nil
}

func unsafeIsBigEndian0(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Bool(false), nil
}
