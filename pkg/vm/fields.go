package vm

import (
	"fmt"
	"strings"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// zeroValueForDescriptor is the JVM default value for a field or array
// element that has never been assigned (section 2.3-2.4): numeric zero,
// false (encoded as int 0), or null for any reference type.
func zeroValueForDescriptor(d string) runtime.Value {
	if d == "" {
		return runtime.Int(0)
	}
	switch d[0] {
	case 'J':
		return runtime.Long(0)
	case 'F':
		return runtime.Float(0)
	case 'D':
		return runtime.Double(0)
	case 'L', '[':
		return runtime.Null()
	default:
		return runtime.Int(0)
	}
}

// resolveFieldOwner walks start's superclass chain to find the class that
// actually declares name, since static storage lives on the declaring
// class (section 5.4.3.2's field resolution), not necessarily the class
// named at the getstatic/putstatic site.
func resolveFieldOwner(start *classloader.Class, name string) (*classloader.Class, error) {
	cur := start
	for cur != nil {
		field, err := cur.File().FindField(name)
		if err != nil {
			return nil, err
		}
		if field != nil {
			return cur, nil
		}
		var serr error
		cur, serr = cur.Super()
		if serr != nil {
			return nil, serr
		}
	}
	return start, nil
}

func (v *VM) executeGetstatic(thread *Thread, f *Frame, index uint16) (runtime.Value, error) {
	ref, err := f.Class.File().Pool.FieldrefAt(index)
	if err != nil {
		return runtime.Value{}, err
	}
	owner, err := f.Class.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return runtime.Value{}, wrapVMError(err, "resolving getstatic target %s", ref.ClassName)
	}
	if err := v.ensureInitialized(thread, owner); err != nil {
		return runtime.Value{}, err
	}
	declaring, err := resolveFieldOwner(owner, ref.Name)
	if err != nil {
		return runtime.Value{}, err
	}
	if err := v.checkDeclaredFieldAccess(thread, f, declaring, ref.Name); err != nil {
		return runtime.Value{}, err
	}
	if val, ok := declaring.StaticField(ref.Name); ok {
		return val, nil
	}
	return zeroValueForDescriptor(ref.Descriptor), nil
}

func (v *VM) executePutstatic(thread *Thread, f *Frame, index uint16) error {
	ref, err := f.Class.File().Pool.FieldrefAt(index)
	if err != nil {
		return err
	}
	owner, err := f.Class.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return wrapVMError(err, "resolving putstatic target %s", ref.ClassName)
	}
	if err := v.ensureInitialized(thread, owner); err != nil {
		return err
	}
	declaring, err := resolveFieldOwner(owner, ref.Name)
	if err != nil {
		return err
	}
	if err := v.checkDeclaredFieldAccess(thread, f, declaring, ref.Name); err != nil {
		return err
	}
	declaring.SetStaticField(ref.Name, f.Pop())
	return nil
}

func (v *VM) executeGetfield(thread *Thread, f *Frame, index uint16) (runtime.Value, error) {
	ref, err := f.Class.File().Pool.FieldrefAt(index)
	if err != nil {
		return runtime.Value{}, err
	}
	obj, ok := f.PopRef().(*runtime.Object)
	if !ok || obj == nil {
		return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
	}
	if actual, ok := obj.Class.(*classloader.Class); ok {
		declaring, err := resolveFieldOwner(actual, ref.Name)
		if err != nil {
			return runtime.Value{}, err
		}
		if err := v.checkDeclaredFieldAccess(thread, f, declaring, ref.Name); err != nil {
			return runtime.Value{}, err
		}
	}
	if val, ok := obj.GetField(ref.Name); ok {
		return val, nil
	}
	return zeroValueForDescriptor(ref.Descriptor), nil
}

func (v *VM) executePutfield(thread *Thread, f *Frame, index uint16) error {
	ref, err := f.Class.File().Pool.FieldrefAt(index)
	if err != nil {
		return err
	}
	val := f.Pop()
	obj, ok := f.PopRef().(*runtime.Object)
	if !ok || obj == nil {
		return v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
	}
	if actual, ok := obj.Class.(*classloader.Class); ok {
		declaring, err := resolveFieldOwner(actual, ref.Name)
		if err != nil {
			return err
		}
		if err := v.checkDeclaredFieldAccess(thread, f, declaring, ref.Name); err != nil {
			return err
		}
	}
	obj.SetField(ref.Name, val)
	return nil
}

// checkDeclaredFieldAccess looks up the field's own FieldInfo on
// declaring (the class resolveFieldOwner found) and enforces
// checkFieldAccess against f.Class, the accessing class, translating a
// violation into a guest-observable IllegalAccessError. A field that
// FindField can't locate (shouldn't happen once resolveFieldOwner has
// already succeeded) is left unenforced rather than treated as a host
// bug.
func (v *VM) checkDeclaredFieldAccess(thread *Thread, f *Frame, declaring *classloader.Class, name string) error {
	field, err := declaring.File().FindField(name)
	if err != nil {
		return err
	}
	if field == nil {
		return nil
	}
	if err := v.checkFieldAccess(f.Class, declaring, field, name); err != nil {
		return v.throwAsException(thread, f.Class.Loader(), "java/lang/IllegalAccessError", err.Error())
	}
	return nil
}

func (v *VM) executeArrayLoad(thread *Thread, f *Frame) (runtime.Value, error) {
	index := f.PopInt()
	arr, ok := f.PopRef().(*runtime.Array)
	if !ok || arr == nil {
		return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
	}
	if !arr.InBounds(index) {
		return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/ArrayIndexOutOfBoundsException", indexMessage(index, arr.Length()))
	}
	return arr.Get(index), nil
}

func (v *VM) executeArrayStore(thread *Thread, f *Frame) error {
	val := f.Pop()
	index := f.PopInt()
	arr, ok := f.PopRef().(*runtime.Array)
	if !ok || arr == nil {
		return v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
	}
	if !arr.InBounds(index) {
		return v.throwAsException(thread, f.Class.Loader(), "java/lang/ArrayIndexOutOfBoundsException", indexMessage(index, arr.Length()))
	}
	if arr.ElementKind == runtime.ElemRef && !val.IsNull() {
		ok, err := v.assignableToClassOrArray(f, componentClassName(arr.ComponentDesc), val)
		if err != nil {
			return err
		}
		if !ok {
			return v.throwAsException(thread, f.Class.Loader(), "java/lang/ArrayStoreException", val.Ref.String())
		}
	}
	arr.Set(index, val)
	return nil
}

// componentClassName turns an array's ComponentDesc into the name
// assignableToClassOrArray expects: array descriptors ("[I",
// "[Ljava/lang/String;") are passed through as-is, object descriptors
// ("Ljava/lang/String;") are stripped to their binary class name.
func componentClassName(desc string) string {
	if strings.HasPrefix(desc, "[") {
		return desc
	}
	return strings.TrimSuffix(strings.TrimPrefix(desc, "L"), ";")
}

func indexMessage(index int32, length int) string {
	return fmt.Sprintf("Index %d out of bounds for length %d", index, length)
}
