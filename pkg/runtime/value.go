// Package runtime holds the VM's operand representation: the tagged Value
// union pushed and popped on every frame's stack, and the heap objects a
// reference Value can point to.
package runtime

import "fmt"

// Kind tags which field of a Value is live. Unlike the teacher's 3-variant
// Value (Int/Ref/Null), every JVM computational type gets its own kind so
// the interpreter's arithmetic opcodes never have to guess a numeric
// value's width from context.
type Kind uint8

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindReturnAddress // produced by jsr, consumed by ret; holds a bytecode offset in I
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindReturnAddress:
		return "returnAddress"
	default:
		return "unknown"
	}
}

// Value is one operand-stack or local-variable slot. Long and Double take
// two consecutive slots in the class file's accounting (max_locals,
// max_stack) but are represented here as a single Value — the frame
// indexes locals by logical slot, not raw word, matching how Go authors of
// an interpreter would naturally model it rather than reproducing the
// spec's physical two-word layout.
type Value struct {
	Kind Kind
	I    int32
	L    int64
	F    float32
	D    float64
	Ref  Reference // nil is the null reference
}

func Int(v int32) Value    { return Value{Kind: KindInt, I: v} }
func Long(v int64) Value   { return Value{Kind: KindLong, L: v} }
func Float(v float32) Value { return Value{Kind: KindFloat, F: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, D: v} }
func Ref(r Reference) Value { return Value{Kind: KindRef, Ref: r} }
func Null() Value            { return Value{Kind: KindRef, Ref: nil} }
func ReturnAddress(pc int32) Value { return Value{Kind: KindReturnAddress, I: pc} }

// Bool stores a JVM boolean as an int Value (0 or 1), matching how the
// bytecode itself treats booleans — there is no boolean computational
// type, only iconst_0/iconst_1 feeding a `boolean`-typed local or field.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// IsNull reports whether a ref-kind Value holds the null reference.
func (v Value) IsNull() bool { return v.Kind == KindRef && v.Ref == nil }

// IsWide reports whether this value's computational type occupies two
// local-variable slots / two operand-stack words in the class file's
// accounting, for max_locals/max_stack bookkeeping and dup2-family ops.
func (v Value) IsWide() bool { return v.Kind == KindLong || v.Kind == KindDouble }

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("int(%d)", v.I)
	case KindLong:
		return fmt.Sprintf("long(%d)", v.L)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.F)
	case KindDouble:
		return fmt.Sprintf("double(%g)", v.D)
	case KindReturnAddress:
		return fmt.Sprintf("returnAddress(%d)", v.I)
	case KindRef:
		if v.Ref == nil {
			return "null"
		}
		return fmt.Sprintf("ref(%s)", v.Ref)
	default:
		return "?"
	}
}

// Reference is implemented by every heap value a ref-kind Value can point
// to: ordinary objects, arrays, and the class-mirror objects exposed to
// java.lang.Class.
type Reference interface {
	fmt.Stringer
	isReference()
}
