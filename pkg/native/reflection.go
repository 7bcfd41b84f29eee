package native

import (
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

// registerReflectionNatives wires the handful of reflection-support
// natives that sit beneath java.lang.reflect and jdk.internal.reflect:
// Reflection.getCallerClass (used by security-sensitive JDK call sites to
// inspect their immediate caller) and sun.reflect.ConstantPool's raw
// constant-pool accessors (used by annotation and generic-signature
// parsing to re-read a class's own pool entries).
func registerReflectionNatives(r *Registry) {
	r.Register("jdk/internal/reflect/Reflection", "getClassAccessFlags", "(Ljava/lang/Class;)I", reflectionGetClassAccessFlags)
	r.Register("sun/reflect/Reflection", "getClassAccessFlags", "(Ljava/lang/Class;)I", reflectionGetClassAccessFlags)
	r.Register("jdk/internal/reflect/Reflection", "getCallerClass", "()Ljava/lang/Class;", reflectionGetCallerClass)
	r.Register("sun/reflect/Reflection", "getCallerClass", "()Ljava/lang/Class;", reflectionGetCallerClass)

	r.Register("jdk/internal/reflect/ConstantPool", "getSize0", "(Ljava/lang/Object;)I", constantPoolGetSize0)
	r.Register("jdk/internal/reflect/ConstantPool", "getUTF8At0", "(Ljava/lang/Object;I)Ljava/lang/String;", constantPoolGetUTF8At0)
	r.Register("jdk/internal/reflect/ConstantPool", "getIntAt0", "(Ljava/lang/Object;I)I", constantPoolGetIntAt0)
	r.Register("jdk/internal/reflect/ConstantPool", "getLongAt0", "(Ljava/lang/Object;I)J", constantPoolGetLongAt0)
	r.Register("jdk/internal/reflect/ConstantPool", "getFloatAt0", "(Ljava/lang/Object;I)F", constantPoolGetFloatAt0)
	r.Register("jdk/internal/reflect/ConstantPool", "getDoubleAt0", "(Ljava/lang/Object;I)D", constantPoolGetDoubleAt0)
	r.Register("jdk/internal/reflect/ConstantPool", "getClassAt0", "(Ljava/lang/Object;I)Ljava/lang/Class;", constantPoolGetClassAt0)
	r.Register("sun/reflect/ConstantPool", "getUTF8At0", "(Ljava/lang/Object;I)Ljava/lang/String;", constantPoolGetUTF8At0)
	r.Register("sun/reflect/ConstantPool", "getIntAt0", "(Ljava/lang/Object;I)I", constantPoolGetIntAt0)
	r.Register("sun/reflect/ConstantPool", "getLongAt0", "(Ljava/lang/Object;I)J", constantPoolGetLongAt0)
	r.Register("sun/reflect/ConstantPool", "getClassAt0", "(Ljava/lang/Object;I)Ljava/lang/Class;", constantPoolGetClassAt0)
}

func reflectionGetClassAccessFlags(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, _ := args[0].Ref.(*runtime.Object)
	class, ok := classOf(mirror)
	if !ok {
		return runtime.Int(0), nil
	}
	return runtime.Int(int32(class.File().AccessFlags)), nil
}

// reflectionGetCallerClass walks the calling thread's frame stack to the
// caller of the native's own Java-level invoker. vireo doesn't model the
// @CallerSensitive trampoline frame the real JDK inserts, so this returns
// the immediate caller two frames up the stack (the reflective call site
// itself, skipping the accessor method that invoked this native) — good
// enough for the handful of call sites that use it only to pick a
// classloader to delegate to.
func reflectionGetCallerClass(vmInst *vm.VM, thread *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	frames := thread.Frames()
	idx := len(frames) - 2
	if idx < 0 {
		return runtime.Null(), nil
	}
	class := frames[idx].Class
	mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
	return runtime.Ref(mirror), nil
}

// constantPoolOf recovers the classfile.Pool a ConstantPool instance
// wraps: javac-emitted callers always construct it from
// Class.getConstantPool(), passing the owning Class mirror itself as the
// "jcpool" handle rather than a separate object, so the arg is just
// another Class mirror.
func constantPoolOf(args []runtime.Value) (*classfile.Pool, bool) {
	mirror, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return nil, false
	}
	class, ok := classOf(mirror)
	if !ok {
		return nil, false
	}
	return class.File().Pool, true
}

func constantPoolGetSize0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Int(0), nil
	}
	return runtime.Int(int32(pool.Len())), nil
}

func constantPoolGetUTF8At0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Null(), nil
	}
	s, err := pool.Utf8At(uint16(args[1].I))
	if err != nil {
		return runtime.Null(), nil
	}
	return runtime.Ref(vmInst.InternString(s)), nil
}

func constantPoolGetIntAt0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Int(0), nil
	}
	if entry, ok := pool.Get(uint16(args[1].I)).(*classfile.Integer); ok {
		return runtime.Int(entry.Value), nil
	}
	return runtime.Int(0), nil
}

func constantPoolGetLongAt0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Long(0), nil
	}
	if entry, ok := pool.Get(uint16(args[1].I)).(*classfile.Long); ok {
		return runtime.Long(entry.Value), nil
	}
	return runtime.Long(0), nil
}

func constantPoolGetFloatAt0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Float(0), nil
	}
	if entry, ok := pool.Get(uint16(args[1].I)).(*classfile.Float); ok {
		return runtime.Float(entry.Value), nil
	}
	return runtime.Float(0), nil
}

func constantPoolGetDoubleAt0(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Double(0), nil
	}
	if entry, ok := pool.Get(uint16(args[1].I)).(*classfile.Double); ok {
		return runtime.Double(entry.Value), nil
	}
	return runtime.Double(0), nil
}

func constantPoolGetClassAt0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	pool, ok := constantPoolOf(args)
	if !ok {
		return runtime.Null(), nil
	}
	name, err := pool.ClassNameAt(uint16(args[1].I))
	if err != nil {
		return runtime.Null(), nil
	}
	class, err := vmInst.App.LoadClass(name)
	if err != nil {
		return runtime.Null(), nil
	}
	mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
	return runtime.Ref(mirror), nil
}
