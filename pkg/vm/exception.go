package vm

import (
	"fmt"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// JavaException is a thrown Java exception object in flight, the other
// half of spec.md's two-plane error model: host bugs and unsupported
// input are a *vm.Error or *classfile.Error, but anything a guest
// try/catch can observe — NullPointerException, a user-thrown custom
// exception, an uncaught RuntimeException unwinding to main — is a
// *JavaException carrying the actual thrown Object.
type JavaException struct {
	Value *runtime.Object
}

func (e *JavaException) Error() string {
	if e.Value == nil {
		return "null exception object"
	}
	msg, ok := e.Value.GetField("message")
	if ok && !msg.IsNull() {
		return fmt.Sprintf("%s: %v", e.Value.Class.Name(), msg)
	}
	return e.Value.Class.Name()
}

// newThrowable builds a new exception instance of the named class with an
// optional message, for natives and interpreter fast paths
// (NullPointerException, ArrayIndexOutOfBoundsException, ...) that must
// synthesize an exception without a guest-visible constructor call.
// Only the message field is set and no <init> runs on the result;
// (*VM).InvokeConstructor is the separate path that allocates an instance
// and runs its real constructor chain, including any user override of
// fillInStackTrace.
func (v *VM) newThrowable(loader *classloader.Loader, className, message string) (*runtime.Object, error) {
	class, err := loader.LoadClass(className)
	if err != nil {
		return nil, wrapVMError(err, "loading exception class %s", className)
	}
	obj := runtime.NewObject(class)
	if message != "" {
		obj.SetField("message", runtime.Ref(v.internString(message)))
	} else {
		obj.SetField("message", runtime.Null())
	}
	return obj, nil
}

// Throw wraps obj as a *JavaException ready to propagate through
// executeMethod's exception-search loop.
func Throw(obj *runtime.Object) *JavaException { return &JavaException{Value: obj} }

// findExceptionHandler searches frame's exception table for the first
// entry covering pc (a byte offset) whose catch type matches exc's class,
// per section 2.10: entries are tried in the order they appear in the
// class file, which is the order a source-level nested try/catch compiles
// to. A zero CatchType entry is a catch-all (used for finally blocks
// compiled with jsr/ret in older class files, and for synthetic
// synchronized-method unlock-on-exception blocks).
func (v *VM) findExceptionHandler(frame *Frame, pc uint16, exc *runtime.Object) (handlerIdx int, found bool, err error) {
	for _, h := range frame.Code.Exceptions {
		if pc < h.StartPC || pc >= h.EndPC {
			continue
		}
		if h.CatchType == 0 {
			idx, ok := frame.instructionIndexForOffset(h.HandlerPC)
			return idx, ok, nil
		}
		catchName, err := frame.Class.File().Pool.ClassNameAt(h.CatchType)
		if err != nil {
			return 0, false, err
		}
		catchClass, err := frame.Class.Loader().LoadClass(catchName)
		if err != nil {
			return 0, false, err
		}
		match, err := exc.Class.(*classloader.Class).IsSubclassOf(catchClass)
		if err != nil {
			return 0, false, err
		}
		if match {
			idx, ok := frame.instructionIndexForOffset(h.HandlerPC)
			return idx, ok, nil
		}
	}
	return 0, false, nil
}
