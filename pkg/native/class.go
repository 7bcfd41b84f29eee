package native

import (
	"strings"
	"sync"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

// primitiveClass stands in for a primitive type's java.lang.Class mirror
// (int.class, void.class, ...), which has no backing ClassFile — it
// satisfies runtime.Class with nothing more than a name, the minimal
// interface runtime.Object requires of its Class field.
type primitiveClass struct{ name string }

func (p *primitiveClass) Name() string { return p.name }

var (
	primitivesMu sync.Mutex
	primitives   = map[string]*runtime.Object{}
)

func primitiveMirror(name string) *runtime.Object {
	primitivesMu.Lock()
	defer primitivesMu.Unlock()
	if obj, ok := primitives[name]; ok {
		return obj
	}
	obj := runtime.NewObject(&primitiveClass{name: name})
	primitives[name] = obj
	return obj
}

func registerClassNatives(r *Registry) {
	r.Register("java/lang/Class", "registerNatives", "()V", noop)
	r.Register("java/lang/Class", "getPrimitiveClass", "(Ljava/lang/String;)Ljava/lang/Class;", classGetPrimitiveClass)
	r.Register("java/lang/Class", "forName0", "(Ljava/lang/String;ZLjava/lang/ClassLoader;Ljava/lang/Class;)Ljava/lang/Class;", classForName0)
	r.Register("java/lang/Class", "getName0", "()Ljava/lang/String;", classGetName0)
	r.Register("java/lang/Class", "isInterface", "()Z", classIsInterface)
	r.Register("java/lang/Class", "isArray", "()Z", classIsArray)
	r.Register("java/lang/Class", "isPrimitive", "()Z", classIsPrimitive)
	r.Register("java/lang/Class", "isAssignableFrom", "(Ljava/lang/Class;)Z", classIsAssignableFrom)
	r.Register("java/lang/Class", "isInstance", "(Ljava/lang/Object;)Z", classIsInstance)
	r.Register("java/lang/Class", "getSuperclass", "()Ljava/lang/Class;", classGetSuperclass)
	r.Register("java/lang/Class", "desiredAssertionStatus0", "(Ljava/lang/Class;)Z", classDesiredAssertionStatus0)
}

// classOf recovers the classloader.Class a java.lang.Class mirror stands
// for. The VM's Mirror scheme (pkg/vm/objects.go's executeLdc,
// classloader.Class.Mirror) sets a mirror Object's own Class field to the
// classloader.Class it represents, rather than to a separately loaded
// java/lang/Class instance — so recovering it is just a type assertion,
// with primitiveClass/arrayClass as the two non-classloader.Class cases.
func classOf(mirror *runtime.Object) (*classloader.Class, bool) {
	c, ok := mirror.Class.(*classloader.Class)
	return c, ok
}

func classGetPrimitiveClass(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	nameObj, _ := args[0].Ref.(*runtime.Object)
	name, _ := vm.GoString(nameObj)
	return runtime.Ref(primitiveMirror(name)), nil
}

func classForName0(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	nameObj, _ := args[0].Ref.(*runtime.Object)
	dotted, _ := vm.GoString(nameObj)
	binaryName := strings.ReplaceAll(dotted, ".", "/")

	class, err := vmInst.App.LoadClass(binaryName)
	if err != nil {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/ClassNotFoundException", dotted)
	}
	mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
	return runtime.Ref(mirror), nil
}

func classGetName0(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, _ := args[0].Ref.(*runtime.Object)
	dotted := strings.ReplaceAll(mirror.Class.Name(), "/", ".")
	return runtime.Ref(vmInst.InternString(dotted)), nil
}

func classIsInterface(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, _ := args[0].Ref.(*runtime.Object)
	class, ok := classOf(mirror)
	return runtime.Bool(ok && class.IsInterface()), nil
}

func classIsArray(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, _ := args[0].Ref.(*runtime.Object)
	return runtime.Bool(strings.HasPrefix(mirror.Class.Name(), "[")), nil
}

func classIsPrimitive(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	mirror, _ := args[0].Ref.(*runtime.Object)
	_, isPrim := mirror.Class.(*primitiveClass)
	return runtime.Bool(isPrim), nil
}

func classIsAssignableFrom(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	self, _ := args[0].Ref.(*runtime.Object)
	other, _ := args[1].Ref.(*runtime.Object)
	selfClass, ok1 := classOf(self)
	otherClass, ok2 := classOf(other)
	if !ok1 || !ok2 {
		return runtime.Bool(self == other), nil
	}
	if otherClass.IsInterface() && !selfClass.IsInterface() {
		return runtime.Bool(false), nil
	}
	if selfClass.IsInterface() {
		ok, err := otherClass.Implements(selfClass)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Bool(ok || selfClass == otherClass), nil
	}
	ok, err := otherClass.IsSubclassOf(selfClass)
	if err != nil {
		return runtime.Value{}, err
	}
	return runtime.Bool(ok), nil
}

func classIsInstance(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	self, _ := args[0].Ref.(*runtime.Object)
	target, ok := classOf(self)
	if !ok {
		return runtime.Bool(false), nil
	}
	obj, ok := args[1].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Bool(false), nil
	}
	actual, ok := classOf(obj)
	if !ok {
		return runtime.Bool(false), nil
	}
	if target.IsInterface() {
		r, err := actual.Implements(target)
		return runtime.Bool(r), err
	}
	r, err := actual.IsSubclassOf(target)
	return runtime.Bool(r), err
}

func classGetSuperclass(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	self, _ := args[0].Ref.(*runtime.Object)
	class, ok := classOf(self)
	if !ok {
		return runtime.Null(), nil
	}
	super, err := class.Super()
	if err != nil || super == nil {
		return runtime.Null(), err
	}
	mirror := super.Mirror(func() runtime.Reference { return runtime.NewObject(super) })
	return runtime.Ref(mirror), nil
}

func classDesiredAssertionStatus0(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Bool(false), nil
}
