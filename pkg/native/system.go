package native

import (
	"time"

	"github.com/vireo-vm/vireo/pkg/runtime"
	"github.com/vireo-vm/vireo/pkg/vm"
)

func registerSystemNatives(r *Registry) {
	r.Register("java/lang/System", "registerNatives", "()V", noop)
	r.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", systemArraycopy)
	r.Register("java/lang/System", "initProperties", "(Ljava/util/Properties;)Ljava/util/Properties;", systemInitProperties)
	r.Register("java/lang/System", "currentTimeMillis", "()J", systemCurrentTimeMillis)
	r.Register("java/lang/System", "nanoTime", "()J", systemNanoTime)
	r.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", systemIdentityHashCode)
	r.Register("java/lang/System", "mapLibraryName", "(Ljava/lang/String;)Ljava/lang/String;", systemMapLibraryName)
	r.Register("java/lang/System", "setIn0", "(Ljava/io/InputStream;)V", systemSetField("in"))
	r.Register("java/lang/System", "setOut0", "(Ljava/io/PrintStream;)V", systemSetField("out"))
	r.Register("java/lang/System", "setErr0", "(Ljava/io/PrintStream;)V", systemSetField("err"))
}

// systemArraycopy implements System.arraycopy for both object-array and
// primitive-array element kinds, the load-bearing copy loop that backs
// every collections-library bulk operation (ArrayList.toArray, Arrays.copyOf).
func systemArraycopy(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	src, _ := args[0].Ref.(*runtime.Array)
	srcPos := args[1].I
	dst, _ := args[2].Ref.(*runtime.Array)
	dstPos := args[3].I
	length := args[4].I

	if src == nil || dst == nil {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/NullPointerException", "")
	}
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		int(srcPos+length) > src.Length() || int(dstPos+length) > dst.Length() {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/ArrayIndexOutOfBoundsException", "arraycopy")
	}
	if src.ElementKind != dst.ElementKind {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/ArrayStoreException", "incompatible array types")
	}

	// Copy through a staging slice so overlapping src==dst ranges behave
	// like memmove, not memcpy (System.arraycopy's documented contract).
	staged := make([]runtime.Value, length)
	for i := int32(0); i < length; i++ {
		staged[i] = src.Get(srcPos + i)
	}
	for i := int32(0); i < length; i++ {
		dst.Set(dstPos+i, staged[i])
	}
	return runtime.Value{}, nil
}

func systemInitProperties(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	props, ok := args[0].Ref.(*runtime.Object)
	if !ok || props == nil {
		return runtime.Value{}, vmInst.ThrowNew(vmInst.Boot, "java/lang/NullPointerException", "")
	}
	defaults := map[string]string{
		"java.version":       "17",
		"java.vendor":        "vireo",
		"java.vendor.url":    "https://example.invalid/vireo",
		"java.home":          vmInst.Config.JavaHome,
		"java.class.path":    vmInst.Config.ClassPath,
		"java.class.version": "61.0",
		"os.name":            "Linux",
		"os.arch":            "amd64",
		"file.separator":     "/",
		"path.separator":     ":",
		"line.separator":     "\n",
		"user.dir":           ".",
		"user.home":          ".",
		"user.name":          "vireo",
	}
	for k, v := range vmInst.Config.SystemProps {
		defaults[k] = v
	}

	classObj, ok := classOf(props)
	if !ok {
		return args[0], nil
	}
	for k, v := range defaults {
		_, err := vmInst.Invoke(thread, classObj, "setProperty",
			"(Ljava/lang/String;Ljava/lang/String;)Ljava/lang/Object;",
			[]runtime.Value{runtime.Ref(props), runtime.Ref(vmInst.InternString(k)), runtime.Ref(vmInst.InternString(v))})
		if err != nil {
			return runtime.Value{}, err
		}
	}
	return args[0], nil
}

func systemCurrentTimeMillis(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Long(time.Now().UnixMilli()), nil
}

func systemNanoTime(_ *vm.VM, _ *vm.Thread, _ []runtime.Value) (runtime.Value, error) {
	return runtime.Long(time.Now().UnixNano()), nil
}

func systemIdentityHashCode(_ *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Int(0), nil
	}
	return runtime.Int(int32(uintptrOf(obj))), nil
}

func systemMapLibraryName(vmInst *vm.VM, _ *vm.Thread, args []runtime.Value) (runtime.Value, error) {
	nameObj, _ := args[0].Ref.(*runtime.Object)
	name, _ := vm.GoString(nameObj)
	return runtime.Ref(vmInst.InternString("lib" + name + ".so")), nil
}

// systemSetField returns a native that stores its single argument into
// the given static field of java.lang.System, the implementation
// System.setOut0/setErr0/setIn0 share (all three have the identical
// "replace this static stream field" shape).
func systemSetField(name string) vm.NativeMethod {
	return func(vmInst *vm.VM, thread *vm.Thread, args []runtime.Value) (runtime.Value, error) {
		class, err := vmInst.Boot.LoadClass("java/lang/System")
		if err != nil {
			return runtime.Value{}, err
		}
		class.SetStaticField(name, args[0])
		return runtime.Value{}, nil
	}
}
