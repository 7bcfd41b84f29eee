package native

import (
	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

func registerObjectNatives(r *Registry) {
	r.Register("java/lang/Object", "registerNatives", "()V", noop)
	r.Register("java/lang/Object", "hashCode", "()I", objectHashCode)
	r.Register("java/lang/Object", "clone", "()Ljava/lang/Object;", objectClone)
	r.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", objectGetClass)
	r.Register("java/lang/Object", "notify", "()V", objectNotify)
	r.Register("java/lang/Object", "notifyAll", "()V", objectNotifyAll)
	r.Register("java/lang/Object", "wait", "(J)V", objectWait)
}

func noop(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Value{}, nil
}

// objectHashCode returns an identity hash derived from the object's heap
// address, the default Object.hashCode() contract when a class does not
// override it.
func objectHashCode(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Int(0), nil
	}
	return runtime.Int(int32(identityHash(obj))), nil
}

func identityHash(obj *runtime.Object) uintptr {
	return uintptr(uintptrOf(obj))
}

// objectClone performs a shallow field copy, the default Object.clone()
// behavior for a class implementing Cloneable. No Cloneable check is made,
// here or in the interpreter, so CloneNotSupportedException is never
// thrown: every receiver is copied. Arrays are also Cloneable in the JVM,
// so this falls back to Array.Clone rather than assuming an Object
// receiver.
func objectClone(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	if arr, ok := args[0].Ref.(*runtime.Array); ok {
		return runtime.Ref(arr.Clone()), nil
	}
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Null(), nil
	}
	clone := runtime.NewObject(obj.Class)
	for name, v := range obj.Snapshot() {
		clone.SetField(name, v)
	}
	return runtime.Ref(clone), nil
}

func objectGetClass(v *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		// Array receiver: no array-class mirror is modeled, so there is
		// nothing to return a real java.lang.Class for yet.
		return runtime.Null(), nil
	}
	class, ok := obj.Class.(interface {
		Mirror(func() runtime.Reference) runtime.Reference
	})
	if !ok {
		return runtime.Null(), nil
	}
	mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(obj.Class) })
	return runtime.Ref(mirror), nil
}

func objectNotify(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	if obj, ok := args[0].Ref.(*runtime.Object); ok {
		obj.Notify()
	}
	return runtime.Value{}, nil
}

func objectNotifyAll(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	if obj, ok := args[0].Ref.(*runtime.Object); ok {
		obj.NotifyAll()
	}
	return runtime.Value{}, nil
}

func objectWait(_ *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Value{}, nil
	}
	obj.Wait(thread.ID)
	return runtime.Value{}, nil
}
