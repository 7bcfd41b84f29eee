package runtime

import "fmt"

// Lambda is a heap value representing a linked java.lang.invoke call
// target: either a functional-interface instance materialized by an
// invokedynamic LambdaMetafactory call site, or a bare MethodHandle
// pushed directly by ldc of a CONSTANT_MethodHandle. Captured holds the
// values bound at link time (a lambda's captured locals, empty for a bare
// handle); Invoke runs the underlying implementation against Captured
// plus whatever arguments the call site supplies, so a receiver-position
// dispatch needs no java.lang.invoke.MethodHandle class to be loaded at
// all. pkg/vm builds Invoke as a closure back into its own executeMethod;
// this package only stores the resulting func value, so no import cycle
// is introduced.
type Lambda struct {
	InterfaceName string // functional interface or "java/lang/invoke/MethodHandle" for a bare handle
	Captured      []Value
	Invoke        func(args []Value) (Value, error)
}

func (l *Lambda) isReference() {}

func (l *Lambda) String() string {
	return fmt.Sprintf("%s$$Lambda", l.InterfaceName)
}

// MethodTypeValue is a resolved CONSTANT_MethodType entry: the method
// descriptor it denotes. Carried as its own heap value rather than a real
// java.lang.invoke.MethodType instance, since nothing downstream needs
// more than the descriptor string to drive linkage.
type MethodTypeValue struct {
	Descriptor string
}

func (m *MethodTypeValue) isReference() {}

func (m *MethodTypeValue) String() string {
	return fmt.Sprintf("MethodType%s", m.Descriptor)
}
