package vm

import (
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// executeNew implements the new opcode: resolves the class, drives it
// through initialization (section 5.5 requires a class be initialized
// before its first instance is created), and allocates a zeroed instance.
// Constructor execution is the caller's job via a subsequent invokespecial
// to <init>, exactly as javac emits it.
func (v *VM) executeNew(thread *Thread, f *Frame, index uint16) (*runtime.Object, error) {
	name, err := f.Class.File().Pool.ClassNameAt(index)
	if err != nil {
		return nil, err
	}
	class, err := f.Class.Loader().LoadClass(name)
	if err != nil {
		return nil, wrapVMError(err, "resolving new target %s", name)
	}
	if err := v.ensureInitialized(thread, class); err != nil {
		return nil, err
	}
	return runtime.NewObject(class), nil
}

func (v *VM) executeCheckcast(thread *Thread, f *Frame, index uint16) error {
	val := f.Peek()
	if val.IsNull() {
		return nil
	}
	ok, err := v.referenceAssignable(f, index, val)
	if err != nil {
		return err
	}
	if !ok {
		name, _ := f.Class.File().Pool.ClassNameAt(index)
		return v.throwAsException(thread, f.Class.Loader(), "java/lang/ClassCastException", name)
	}
	return nil
}

func (v *VM) executeInstanceof(thread *Thread, f *Frame, index uint16) (bool, error) {
	val := f.Pop()
	if val.IsNull() {
		return false, nil
	}
	return v.referenceAssignable(f, index, val)
}

// referenceAssignable reports whether val's runtime type may be assigned
// to the class or array type named at index.
func (v *VM) referenceAssignable(f *Frame, index uint16, val runtime.Value) (bool, error) {
	targetName, err := f.Class.File().Pool.ClassNameAt(index)
	if err != nil {
		return false, err
	}
	return v.assignableToClassOrArray(f, targetName, val)
}

// assignableToClassOrArray is referenceAssignable's resolved-name core,
// shared with executeArrayStore's ArrayStoreException check (the
// component type there comes from an Array's ComponentDesc, not a pool
// index). Array-type targets are accepted without full component-type
// covariance verification — a simplification the interpreter trusts
// javac's already-verified bytecode not to need; DESIGN.md records the
// gap for non-javac-generated class files.
func (v *VM) assignableToClassOrArray(f *Frame, targetName string, val runtime.Value) (bool, error) {
	if len(targetName) > 0 && targetName[0] == '[' {
		_, isArray := val.Ref.(*runtime.Array)
		return isArray, nil
	}
	obj, ok := val.Ref.(*runtime.Object)
	if !ok {
		return false, nil
	}
	actual, ok := obj.Class.(*classloader.Class)
	if !ok {
		return false, nil
	}
	target, err := f.Class.Loader().LoadClass(targetName)
	if err != nil {
		return false, wrapVMError(err, "resolving assignability target %s", targetName)
	}
	if target.IsInterface() {
		return actual.Implements(target)
	}
	return actual.IsSubclassOf(target)
}

// executeMultianewarray builds a nested array structure for the
// multianewarray opcode (section 6.5.multianewarray): the operand's
// dimension count may be fewer than the array type descriptor's own
// bracket depth, in which case the innermost unallocated dimensions are
// left null, matching javac's partial-dimension array creation.
func (v *VM) executeMultianewarray(thread *Thread, f *Frame, inst classfile.Instruction) (runtime.Value, error) {
	dims := int(inst.IntOperand)
	lengths := make([]int32, dims)
	for i := dims - 1; i >= 0; i-- {
		lengths[i] = f.PopInt()
		if lengths[i] < 0 {
			return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/NegativeArraySizeException", "")
		}
	}
	arrayDesc, err := f.Class.File().Pool.ClassNameAt(inst.Index)
	if err != nil {
		return runtime.Value{}, err
	}
	arr, err := buildMultiArray(arrayDesc, lengths)
	if err != nil {
		return runtime.Value{}, err
	}
	return runtime.Ref(arr), nil
}

func buildMultiArray(desc string, lengths []int32) (*runtime.Array, error) {
	length := lengths[0]
	componentDesc := desc[1:]
	if len(lengths) == 1 {
		return newArrayForDescriptor(componentDesc, length)
	}
	arr := runtime.NewRefArray(componentDesc, int(length))
	for i := int32(0); i < length; i++ {
		sub, err := buildMultiArray(componentDesc, lengths[1:])
		if err != nil {
			return nil, err
		}
		arr.SetRef(i, sub)
	}
	return arr, nil
}

func newArrayForDescriptor(desc string, length int32) (*runtime.Array, error) {
	if len(desc) == 0 {
		return nil, newVMError("empty array component descriptor")
	}
	switch desc[0] {
	case '[', 'L':
		return runtime.NewRefArray(desc, int(length)), nil
	case 'I':
		return runtime.NewPrimitiveArray(runtime.ElemInt, int(length)), nil
	case 'J':
		return runtime.NewPrimitiveArray(runtime.ElemLong, int(length)), nil
	case 'F':
		return runtime.NewPrimitiveArray(runtime.ElemFloat, int(length)), nil
	case 'D':
		return runtime.NewPrimitiveArray(runtime.ElemDouble, int(length)), nil
	case 'B', 'Z':
		return runtime.NewPrimitiveArray(runtime.ElemByte, int(length)), nil
	case 'C':
		return runtime.NewPrimitiveArray(runtime.ElemChar, int(length)), nil
	case 'S':
		return runtime.NewPrimitiveArray(runtime.ElemShort, int(length)), nil
	default:
		return nil, newVMError("unrecognized array component descriptor %q", desc)
	}
}

// executeLdc implements ldc/ldc_w/ldc2_w: the constant pool entry's tag
// determines the pushed Value's kind, with CONSTANT_String interned
// through the VM's string pool and CONSTANT_Class resolved to its
// java.lang.Class mirror (section 5.1's "every resolution is idempotent
// and cached" rule, reused here via Class.Mirror).
func (v *VM) executeLdc(thread *Thread, f *Frame, index uint16) (runtime.Value, error) {
	entry := f.Class.File().Pool.Get(index)
	if entry == nil {
		return runtime.Value{}, newVMErrorKind(ErrInvalidConstant, "ldc: no constant at index %d", index)
	}
	switch e := entry.(type) {
	case *classfile.Integer:
		return runtime.Int(e.Value), nil
	case *classfile.Float:
		return runtime.Float(e.Value), nil
	case *classfile.Long:
		return runtime.Long(e.Value), nil
	case *classfile.Double:
		return runtime.Double(e.Value), nil
	case *classfile.String:
		s, err := f.Class.File().Pool.Utf8At(e.StringIndex)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Ref(v.internString(s)), nil
	case *classfile.Class:
		name, err := f.Class.File().Pool.ClassNameAt(index)
		if err != nil {
			return runtime.Value{}, err
		}
		class, err := f.Class.Loader().LoadClass(name)
		if err != nil {
			return runtime.Value{}, wrapVMError(err, "resolving ldc class constant %s", name)
		}
		mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
		return runtime.Ref(mirror), nil
	case *classfile.MethodHandle:
		lam, err := v.resolveMethodHandleConstant(thread, f, e)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Ref(lam), nil
	case *classfile.MethodType:
		descriptor, err := f.Class.File().Pool.Utf8At(e.DescriptorIndex)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Ref(&runtime.MethodTypeValue{Descriptor: descriptor}), nil
	case *classfile.Dynamic:
		return v.resolveDynamicConstant(thread, f, index, e)
	default:
		return runtime.Value{}, newVMErrorKind(ErrInvalidConstant, "unsupported ldc constant tag %d at index %d", entry.Tag(), index)
	}
}
