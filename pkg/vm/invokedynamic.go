package vm

import (
	"fmt"
	"strings"

	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// CallSite is a linked invokedynamic/condy call site: a bootstrap method
// runs exactly once to decide how the site behaves, and every subsequent
// execution just runs Link against whatever the call site itself popped
// off the operand stack, matching section 4.7's "caches the produced
// CallSite per pool index".
type CallSite struct {
	Link func(thread *Thread, captured []runtime.Value) (runtime.Value, error)
}

// callSiteKey identifies one invokedynamic/condy site: the pool index
// that names it is only meaningful within the class file that owns it, so
// two classes referencing the same numeric index are different sites.
type callSiteKey struct {
	class *classloader.Class
	index uint16
}

// callSite returns the cached CallSite for key, building and caching it
// via build on first use. A race between two threads linking the same
// site for the first time is resolved first-writer-wins: the later build's
// result is discarded and the already-cached site returned (both builds
// are side-effect-free besides the map write), matching the classloader
// cache's own concurrency model.
func (v *VM) callSite(key callSiteKey, build func() (*CallSite, error)) (*CallSite, error) {
	v.callSitesMu.Lock()
	if v.callSites == nil {
		v.callSites = make(map[callSiteKey]*CallSite)
	}
	if cs, ok := v.callSites[key]; ok {
		v.callSitesMu.Unlock()
		return cs, nil
	}
	v.callSitesMu.Unlock()

	cs, err := build()
	if err != nil {
		return nil, err
	}

	v.callSitesMu.Lock()
	defer v.callSitesMu.Unlock()
	if existing, ok := v.callSites[key]; ok {
		return existing, nil
	}
	v.callSites[key] = cs
	return cs, nil
}

// executeInvokedynamic implements invokedynamic (section 4.7): link the
// call site's bootstrap method once (cached per pool index), pop the
// arguments the indy descriptor names off the operand stack, and hand
// them to the linked CallSite as its captured state.
func (v *VM) executeInvokedynamic(thread *Thread, f *Frame, inst classfile.Instruction) (runtime.Value, error) {
	indy, err := f.Class.File().Pool.InvokeDynamicAt(inst.Index)
	if err != nil {
		return runtime.Value{}, err
	}
	_, descriptor, err := f.Class.File().Pool.NameAndTypeAt(indy.NameAndTypeIndex)
	if err != nil {
		return runtime.Value{}, err
	}

	key := callSiteKey{class: f.Class, index: inst.Index}
	cs, err := v.callSite(key, func() (*CallSite, error) {
		return v.linkBootstrap(f.Class, indy.BootstrapMethodAttrIndex, descriptor)
	})
	if err != nil {
		return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/BootstrapMethodError", err.Error())
	}

	paramCount := ParamCount(descriptor)
	captured := make([]runtime.Value, paramCount)
	for i := paramCount - 1; i >= 0; i-- {
		captured[i] = f.Pop()
	}
	return cs.Link(thread, captured)
}

// resolveDynamicConstant implements ldc of a CONSTANT_Dynamic entry
// (condy): the same bootstrap-linkage machinery invokedynamic uses, with
// zero captured arguments (a condy constant's "descriptor" is a field
// descriptor, not a parameter list) and the result cached the same way.
func (v *VM) resolveDynamicConstant(thread *Thread, f *Frame, index uint16, dyn *classfile.Dynamic) (runtime.Value, error) {
	_, fieldDesc, err := f.Class.File().Pool.NameAndTypeAt(dyn.NameAndTypeIndex)
	if err != nil {
		return runtime.Value{}, err
	}
	key := callSiteKey{class: f.Class, index: index}
	cs, err := v.callSite(key, func() (*CallSite, error) {
		return v.linkBootstrap(f.Class, dyn.BootstrapMethodAttrIndex, "()"+fieldDesc)
	})
	if err != nil {
		return runtime.Value{}, v.throwAsException(thread, f.Class.Loader(), "java/lang/BootstrapMethodError", err.Error())
	}
	return cs.Link(thread, nil)
}

// linkBootstrap resolves indy/condy's BootstrapMethods entry to the
// factory method it names and dispatches to the two bootstraps it
// recognizes: LambdaMetafactory and StringConcatFactory, per
// SPEC_FULL.md's stated non-goal that arbitrary user bootstrap methods
// are out of scope. Any other bootstrap method surfaces as a
// BootstrapMethodError, a spec-legal linkage failure rather than a host
// bug.
func (v *VM) linkBootstrap(class *classloader.Class, bsIndex uint16, indyDescriptor string) (*CallSite, error) {
	bm, ok := class.File().BootstrapMethod(bsIndex)
	if !ok {
		return nil, fmt.Errorf("no BootstrapMethods entry at index %d", bsIndex)
	}
	handle, ok := class.File().Pool.Get(bm.MethodRefIndex).(*classfile.MethodHandle)
	if !ok {
		return nil, fmt.Errorf("bootstrap method ref at pool index %d is not a MethodHandle", bm.MethodRefIndex)
	}
	ref, err := class.File().Pool.AnyMethodrefAt(handle.ReferenceIndex)
	if err != nil {
		return nil, err
	}
	switch {
	case ref.ClassName == "java/lang/invoke/StringConcatFactory" && ref.Name == "makeConcatWithConstants":
		return v.linkStringConcat(class, bm)
	case ref.ClassName == "java/lang/invoke/LambdaMetafactory" && (ref.Name == "metafactory" || ref.Name == "altMetafactory"):
		return v.linkLambdaMetafactory(class, bm, indyDescriptor)
	default:
		return nil, fmt.Errorf("unsupported bootstrap method %s.%s", ref.ClassName, ref.Name)
	}
}

// linkStringConcat implements java.lang.invoke.StringConcatFactory's
// indified String concatenation (JEP 280): bm.Arguments[0] is the pool
// index of the recipe string (javac's encoding: '' marks a captured
// argument, '' marks an embedded constant from bm.Arguments[1:], any
// other character is literal), and every call-site invocation walks the
// recipe against the captured arguments to build the result.
func (v *VM) linkStringConcat(class *classloader.Class, bm *classfile.BootstrapMethod) (*CallSite, error) {
	if len(bm.Arguments) == 0 {
		return nil, fmt.Errorf("makeConcatWithConstants: missing recipe argument")
	}
	recipe, err := class.File().Pool.Utf8At(bm.Arguments[0])
	if err != nil {
		return nil, err
	}
	constants := bm.Arguments[1:]
	pool := class.File().Pool

	return &CallSite{
		Link: func(thread *Thread, captured []runtime.Value) (runtime.Value, error) {
			var sb strings.Builder
			argPos, constPos := 0, 0
			for _, r := range recipe {
				switch r {
				case '':
					if argPos >= len(captured) {
						return runtime.Value{}, fmt.Errorf("makeConcatWithConstants: recipe references more arguments than supplied")
					}
					sb.WriteString(concatOperand(captured[argPos]))
					argPos++
				case '':
					if constPos >= len(constants) {
						return runtime.Value{}, fmt.Errorf("makeConcatWithConstants: recipe references more constants than supplied")
					}
					s, err := constantAsString(pool, constants[constPos])
					if err != nil {
						return runtime.Value{}, err
					}
					sb.WriteString(s)
					constPos++
				default:
					sb.WriteRune(r)
				}
			}
			return runtime.Ref(v.internString(sb.String())), nil
		},
	}, nil
}

// concatOperand renders one captured argument the way
// StringConcatFactory's generated recipe would: primitives via their
// normal decimal form, a java.lang.String operand via its backing char[],
// any other reference or null via the JVM's String.valueOf convention.
func concatOperand(val runtime.Value) string {
	switch val.Kind {
	case runtime.KindInt:
		return fmt.Sprint(val.I)
	case runtime.KindLong:
		return fmt.Sprint(val.L)
	case runtime.KindFloat:
		return fmt.Sprint(val.F)
	case runtime.KindDouble:
		return fmt.Sprint(val.D)
	default:
		if val.IsNull() {
			return "null"
		}
		if obj, ok := val.Ref.(*runtime.Object); ok {
			if s, ok := GoString(obj); ok {
				return s
			}
		}
		return val.Ref.String()
	}
}

// constantAsString renders a recipe's ''-marked embedded constant.
func constantAsString(pool *classfile.Pool, index uint16) (string, error) {
	switch e := pool.Get(index).(type) {
	case *classfile.Utf8:
		return e.Value, nil
	case *classfile.String:
		return pool.Utf8At(e.StringIndex)
	case *classfile.Integer:
		return fmt.Sprint(e.Value), nil
	case *classfile.Long:
		return fmt.Sprint(e.Value), nil
	case *classfile.Float:
		return fmt.Sprint(e.Value), nil
	case *classfile.Double:
		return fmt.Sprint(e.Value), nil
	default:
		return "", fmt.Errorf("unsupported makeConcatWithConstants constant at index %d", index)
	}
}

// linkLambdaMetafactory implements java.lang.invoke.LambdaMetafactory's
// metafactory/altMetafactory bootstrap: bm.Arguments[1] is the
// MethodHandle naming the lambda body's implementation method, and the
// indy descriptor's return type names the functional interface being
// implemented. Link materializes a runtime.Lambda carrying this call
// site's captured values; invoking one of the interface's abstract
// methods later (see invoke.go's executeInvoke) runs the implementation
// against captured+args regardless of which interface method name was
// used to get there — a simplification appropriate to a VM with no
// compiled proxy class for the interface itself.
func (v *VM) linkLambdaMetafactory(class *classloader.Class, bm *classfile.BootstrapMethod, indyDescriptor string) (*CallSite, error) {
	if len(bm.Arguments) < 2 {
		return nil, fmt.Errorf("metafactory: missing implementation argument")
	}
	implHandle, ok := class.File().Pool.Get(bm.Arguments[1]).(*classfile.MethodHandle)
	if !ok {
		return nil, fmt.Errorf("metafactory: implementation argument is not a MethodHandle")
	}
	implRef, err := class.File().Pool.AnyMethodrefAt(implHandle.ReferenceIndex)
	if err != nil {
		return nil, err
	}
	ifaceName := strings.TrimSuffix(strings.TrimPrefix(ReturnDescriptor(indyDescriptor), "L"), ";")
	refKind := implHandle.ReferenceKind

	return &CallSite{
		Link: func(thread *Thread, captured []runtime.Value) (runtime.Value, error) {
			implClass, err := class.Loader().LoadClass(implRef.ClassName)
			if err != nil {
				return runtime.Value{}, wrapVMError(err, "resolving lambda implementation class %s", implRef.ClassName)
			}
			capturedCopy := append([]runtime.Value(nil), captured...)
			lam := &runtime.Lambda{InterfaceName: ifaceName, Captured: capturedCopy}
			lam.Invoke = func(args []runtime.Value) (runtime.Value, error) {
				full := append([]runtime.Value(nil), capturedCopy...)
				full = append(full, args...)
				if refKind == classfile.RefNewInvokeSpecial {
					obj, err := v.InvokeConstructor(thread, implClass, implRef.Descriptor, full)
					if err != nil {
						return runtime.Value{}, err
					}
					return runtime.Ref(obj), nil
				}
				_, implMethod, err := resolveMethod(implClass, implRef.Name, implRef.Descriptor)
				if err != nil {
					return runtime.Value{}, err
				}
				if implMethod == nil {
					return runtime.Value{}, v.throwAsException(thread, implClass.Loader(), "java/lang/NoSuchMethodError", implRef.ClassName+"."+implRef.Name)
				}
				return v.executeMethod(thread, implClass, implMethod, full)
			}
			return runtime.Ref(lam), nil
		},
	}, nil
}

// resolveMethodHandleConstant implements ldc of a bare CONSTANT_MethodHandle
// entry: wraps the referenced member as a runtime.Lambda with no captured
// state, so it can be invoked later the same way a metafactory-produced
// lambda is (see executeInvoke's receiver-kind check).
func (v *VM) resolveMethodHandleConstant(thread *Thread, f *Frame, mh *classfile.MethodHandle) (*runtime.Lambda, error) {
	ref, err := f.Class.File().Pool.AnyMethodrefAt(mh.ReferenceIndex)
	if err != nil {
		return nil, err
	}
	implClass, err := f.Class.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return nil, wrapVMError(err, "resolving MethodHandle target class %s", ref.ClassName)
	}
	refKind := mh.ReferenceKind
	lam := &runtime.Lambda{InterfaceName: "java/lang/invoke/MethodHandle"}
	lam.Invoke = func(args []runtime.Value) (runtime.Value, error) {
		if refKind == classfile.RefNewInvokeSpecial {
			obj, err := v.InvokeConstructor(thread, implClass, ref.Descriptor, args)
			if err != nil {
				return runtime.Value{}, err
			}
			return runtime.Ref(obj), nil
		}
		_, implMethod, err := resolveMethod(implClass, ref.Name, ref.Descriptor)
		if err != nil {
			return runtime.Value{}, err
		}
		if implMethod == nil {
			return runtime.Value{}, v.throwAsException(thread, implClass.Loader(), "java/lang/NoSuchMethodError", ref.ClassName+"."+ref.Name)
		}
		return v.executeMethod(thread, implClass, implMethod, args)
	}
	return lam, nil
}
