package native

import (
	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

// registerClassLoaderNatives wires java.lang.ClassLoader's load-bearing
// natives. vireo does not model a per-instance java.lang.ClassLoader
// heap object layered over pkg/classloader.Loader (no port of the JDK's
// URLClassLoader/AppClassLoader class hierarchy is in scope, per
// spec.md §1's "external collaborator" carve-out for JDK discovery) — so
// findBuiltinLib and friends are no-ops, and class resolution always goes
// through the VM's own Boot/App loader pair rather than a loader mirror
// object, the same simplification classForName0 makes.
func registerClassLoaderNatives(r *Registry) {
	r.Register("java/lang/ClassLoader", "registerNatives", "()V", noop)
	r.Register("java/lang/ClassLoader", "findBuiltinLib", "(Ljava/lang/String;)Ljava/lang/String;", classLoaderFindBuiltinLib)
	r.Register("java/lang/ClassLoader$NativeLibrary", "load", "(Ljava/lang/String;ZZZ)V", noop)
	r.Register("java/lang/ClassLoader", "findLoadedClass0", "(Ljava/lang/String;)Ljava/lang/Class;", classLoaderFindLoadedClass0)
}

func classLoaderFindBuiltinLib(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Null(), nil
}

func classLoaderFindLoadedClass0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	nameObj, _ := args[1].Ref.(*runtime.Object)
	name, _ := vm.GoString(nameObj)
	class, err := vmInst.App.LoadClass(name)
	if err != nil {
		return runtime.Null(), nil
	}
	mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
	return runtime.Ref(mirror), nil
}
