package vm

import (
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// resolveMethod walks start's superclass chain, then its interface
// closure, looking for name/descriptor — the shared search invokestatic,
// invokespecial, invokevirtual and invokeinterface all build on, differing
// only in which class they start the search from (section 5.4.3.3/3.4).
func resolveMethod(start *classloader.Class, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	cur := start
	for cur != nil {
		m, err := cur.File().FindMethod(name, descriptor)
		if err != nil {
			return nil, nil, err
		}
		if m != nil {
			return cur, m, nil
		}
		var serr error
		cur, serr = cur.Super()
		if serr != nil {
			return nil, nil, serr
		}
	}
	return searchInterfaces(start, name, descriptor)
}

func searchInterfaces(start *classloader.Class, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	cur := start
	for cur != nil {
		ifaces, err := cur.Interfaces()
		if err != nil {
			return nil, nil, err
		}
		for _, iface := range ifaces {
			m, err := iface.File().FindMethod(name, descriptor)
			if err != nil {
				return nil, nil, err
			}
			if m != nil && !m.IsAbstract() {
				return iface, m, nil
			}
			if declClass, declMethod, err := searchInterfaces(iface, name, descriptor); err != nil {
				return nil, nil, err
			} else if declMethod != nil {
				return declClass, declMethod, nil
			}
		}
		var serr error
		cur, serr = cur.Super()
		if serr != nil {
			return nil, nil, serr
		}
	}
	return nil, nil, nil
}

// executeInvoke implements invokevirtual/invokespecial/invokestatic/
// invokeinterface: pops the receiver (unless static) and arguments off the
// operand stack in descriptor order, resolves the target method per the
// opcode's dispatch rule, and runs it. Returns nil for a void return.
func (v *VM) executeInvoke(thread *Thread, f *Frame, inst classfile.Instruction) (*runtime.Value, error) {
	ref, err := f.Class.File().Pool.AnyMethodrefAt(inst.Index)
	if err != nil {
		return nil, err
	}
	paramCount := ParamCount(ref.Descriptor)
	args := make([]runtime.Value, paramCount)
	for i := paramCount - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}

	owner, err := f.Class.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return nil, wrapVMError(err, "resolving invoke target class %s", ref.ClassName)
	}

	var declClass *classloader.Class
	var method *classfile.MethodInfo
	var receiver runtime.Value

	switch inst.Opcode {
	case classfile.OpInvokestatic:
		declClass, method, err = resolveMethod(owner, ref.Name, ref.Descriptor)
	case classfile.OpInvokespecial:
		receiver = f.Pop()
		declClass, method, err = resolveMethod(owner, ref.Name, ref.Descriptor)
	default: // invokevirtual, invokeinterface
		receiver = f.Pop()
		if lam, ok := receiver.Ref.(*runtime.Lambda); ok {
			// A functional-interface instance materialized by
			// LambdaMetafactory, or a bare MethodHandle from ldc: any
			// interface method name dispatches straight to its captured
			// implementation, since no proxy class for the interface
			// itself was ever generated.
			if lam == nil {
				return nil, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", ref.Name)
			}
			result, err := lam.Invoke(args)
			if err != nil {
				return nil, err
			}
			if ReturnDescriptor(ref.Descriptor) == "V" {
				return nil, nil
			}
			return &result, nil
		}
		obj, ok := receiver.Ref.(*runtime.Object)
		if !ok || obj == nil {
			return nil, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", ref.Name)
		}
		actual, ok := obj.Class.(*classloader.Class)
		if !ok {
			return nil, newVMError("receiver's class does not satisfy classloader.Class")
		}
		declClass, method, err = resolveMethod(actual, ref.Name, ref.Descriptor)
	}
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, v.throwAsException(thread, f.Class.Loader(), "java/lang/NoSuchMethodError", ref.ClassName+"."+ref.Name+ref.Descriptor)
	}
	if method.IsAbstract() {
		return nil, v.throwAsException(thread, f.Class.Loader(), "java/lang/AbstractMethodError", ref.ClassName+"."+ref.Name)
	}
	if err := v.checkMethodAccess(f.Class, declClass, method); err != nil {
		return nil, v.throwAsException(thread, f.Class.Loader(), "java/lang/IllegalAccessError", err.Error())
	}

	if err := v.ensureInitialized(thread, declClass); err != nil {
		return nil, err
	}

	full := args
	if inst.Opcode != classfile.OpInvokestatic {
		full = make([]runtime.Value, 0, paramCount+1)
		full = append(full, receiver)
		full = append(full, args...)
	}

	result, err := v.executeMethod(thread, declClass, method, full)
	if err != nil {
		return nil, err
	}
	if ReturnDescriptor(ref.Descriptor) == "V" {
		return nil, nil
	}
	return &result, nil
}

// Invoke is natives' entry point back into bytecode execution: it
// resolves (class, methodName, descriptor) with the same virtual-dispatch
// search executeInvoke uses, then runs it with args already in invoke
// order (receiver first for instance methods). Natives that must call
// back into Java — System.initProperties populating a Properties
// instance via its own setProperty, a synthesized exception running its
// real constructor chain — go through here rather than poking field
// storage directly.
func (v *VM) Invoke(thread *Thread, class *classloader.Class, methodName, descriptor string, args []runtime.Value) (runtime.Value, error) {
	declClass, method, err := resolveMethod(class, methodName, descriptor)
	if err != nil {
		return runtime.Value{}, err
	}
	if method == nil {
		return runtime.Value{}, v.throwAsException(thread, class.Loader(), "java/lang/NoSuchMethodError", class.Name()+"."+methodName+descriptor)
	}
	if err := v.ensureInitialized(thread, declClass); err != nil {
		return runtime.Value{}, err
	}
	return v.executeMethod(thread, declClass, method, args)
}

// InvokeConstructor allocates an instance of class and runs the <init>
// constructor matching descriptor with args (excluding the receiver,
// which InvokeConstructor supplies as the first argument), returning the
// fully constructed object. This is the path natives synthesizing a Java
// exception with a real constructor call (rather than newThrowable's
// direct field-population fast path) use, so user overrides of
// fillInStackTrace or custom exception fields still run.
func (v *VM) InvokeConstructor(thread *Thread, class *classloader.Class, descriptor string, args []runtime.Value) (*runtime.Object, error) {
	if err := v.ensureInitialized(thread, class); err != nil {
		return nil, err
	}
	obj := runtime.NewObject(class)
	full := make([]runtime.Value, 0, len(args)+1)
	full = append(full, runtime.Ref(obj))
	full = append(full, args...)
	if _, err := v.Invoke(thread, class, "<init>", descriptor, full); err != nil {
		return nil, err
	}
	return obj, nil
}
