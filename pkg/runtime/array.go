package runtime

import (
	"fmt"
	"sync"
)

// ElementKind distinguishes an array's component computational type so
// aaload/iaload/baload etc. can bounds-check and default-value the right
// way without reflecting on stored Values.
type ElementKind uint8

const (
	ElemInt ElementKind = iota
	ElemLong
	ElemFloat
	ElemDouble
	ElemByte // also backs boolean[] per section 2.3.4
	ElemChar
	ElemShort
	ElemRef // object and array component types
)

// Array is a heap array instance. Primitive arrays store raw Go slices
// instead of []Value to avoid one Value-sized allocation per element; only
// ElemRef arrays hold boxed References.
type Array struct {
	ElementKind  ElementKind
	ComponentDesc string // the component type's descriptor, for anewarray/checkcast
	mu           sync.Mutex

	ints    []int32
	longs   []int64
	floats  []float32
	doubles []float64
	bytes   []int8
	chars   []uint16
	shorts  []int16
	refs    []Reference
}

func (a *Array) isReference() {}

func (a *Array) String() string {
	return fmt.Sprintf("%s[%d]", a.ComponentDesc, a.Length())
}

// NewPrimitiveArray allocates a zero-filled array of the given kind and
// length, per newarray (section 6.5.newarray).
func NewPrimitiveArray(kind ElementKind, length int) *Array {
	a := &Array{ElementKind: kind}
	switch kind {
	case ElemInt:
		a.ints = make([]int32, length)
	case ElemLong:
		a.longs = make([]int64, length)
	case ElemFloat:
		a.floats = make([]float32, length)
	case ElemDouble:
		a.doubles = make([]float64, length)
	case ElemByte:
		a.bytes = make([]int8, length)
	case ElemChar:
		a.chars = make([]uint16, length)
	case ElemShort:
		a.shorts = make([]int16, length)
	}
	return a
}

// NewRefArray allocates a reference array (anewarray / multianewarray),
// every element initialized to null. componentDesc is the JVM type
// descriptor of the element type, used by checkcast/instanceof on stores.
func NewRefArray(componentDesc string, length int) *Array {
	return &Array{ElementKind: ElemRef, ComponentDesc: componentDesc, refs: make([]Reference, length)}
}

// Clone returns a shallow copy backed by freshly allocated storage slices,
// the array-specific case of Object.clone() (arrays are Cloneable without
// declaring it, per section 2.15).
func (a *Array) Clone() *Array {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := &Array{ElementKind: a.ElementKind, ComponentDesc: a.ComponentDesc}
	out.ints = append([]int32(nil), a.ints...)
	out.longs = append([]int64(nil), a.longs...)
	out.floats = append([]float32(nil), a.floats...)
	out.doubles = append([]float64(nil), a.doubles...)
	out.bytes = append([]int8(nil), a.bytes...)
	out.chars = append([]uint16(nil), a.chars...)
	out.shorts = append([]int16(nil), a.shorts...)
	out.refs = append([]Reference(nil), a.refs...)
	return out
}

func (a *Array) Length() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.ElementKind {
	case ElemInt:
		return len(a.ints)
	case ElemLong:
		return len(a.longs)
	case ElemFloat:
		return len(a.floats)
	case ElemDouble:
		return len(a.doubles)
	case ElemByte:
		return len(a.bytes)
	case ElemChar:
		return len(a.chars)
	case ElemShort:
		return len(a.shorts)
	default:
		return len(a.refs)
	}
}

// InBounds reports whether index is a legal subscript, the check every
// *aload/*astore opcode must perform before touching the backing slice.
func (a *Array) InBounds(index int32) bool {
	return index >= 0 && int(index) < a.Length()
}

// CompareAndSwapInt replaces element i with next if it currently equals
// expected, guarded by the same per-array mutex every element accessor
// already takes. The Unsafe compareAndSet* natives do not call it: they
// handle object fields only.
func (a *Array) CompareAndSwapInt(i int32, expected, next int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ints[i] != expected {
		return false
	}
	a.ints[i] = next
	return true
}

// CompareAndSwapLong is CompareAndSwapInt's long-element counterpart.
func (a *Array) CompareAndSwapLong(i int32, expected, next int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.longs[i] != expected {
		return false
	}
	a.longs[i] = next
	return true
}

// CompareAndSwapRef is CompareAndSwapInt's reference-element counterpart.
func (a *Array) CompareAndSwapRef(i int32, expected, next Reference) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs[i] != expected {
		return false
	}
	a.refs[i] = next
	return true
}

func (a *Array) GetInt(i int32) int32       { a.mu.Lock(); defer a.mu.Unlock(); return a.ints[i] }
func (a *Array) SetInt(i int32, v int32)    { a.mu.Lock(); a.ints[i] = v; a.mu.Unlock() }
func (a *Array) GetLong(i int32) int64      { a.mu.Lock(); defer a.mu.Unlock(); return a.longs[i] }
func (a *Array) SetLong(i int32, v int64)   { a.mu.Lock(); a.longs[i] = v; a.mu.Unlock() }
func (a *Array) GetFloat(i int32) float32   { a.mu.Lock(); defer a.mu.Unlock(); return a.floats[i] }
func (a *Array) SetFloat(i int32, v float32) { a.mu.Lock(); a.floats[i] = v; a.mu.Unlock() }
func (a *Array) GetDouble(i int32) float64  { a.mu.Lock(); defer a.mu.Unlock(); return a.doubles[i] }
func (a *Array) SetDouble(i int32, v float64) { a.mu.Lock(); a.doubles[i] = v; a.mu.Unlock() }
func (a *Array) GetByte(i int32) int8       { a.mu.Lock(); defer a.mu.Unlock(); return a.bytes[i] }
func (a *Array) SetByte(i int32, v int8)    { a.mu.Lock(); a.bytes[i] = v; a.mu.Unlock() }
func (a *Array) GetChar(i int32) uint16     { a.mu.Lock(); defer a.mu.Unlock(); return a.chars[i] }
func (a *Array) SetChar(i int32, v uint16)  { a.mu.Lock(); a.chars[i] = v; a.mu.Unlock() }
func (a *Array) GetShort(i int32) int16     { a.mu.Lock(); defer a.mu.Unlock(); return a.shorts[i] }
func (a *Array) SetShort(i int32, v int16)  { a.mu.Lock(); a.shorts[i] = v; a.mu.Unlock() }
func (a *Array) GetRef(i int32) Reference   { a.mu.Lock(); defer a.mu.Unlock(); return a.refs[i] }
func (a *Array) SetRef(i int32, v Reference) { a.mu.Lock(); a.refs[i] = v; a.mu.Unlock() }

// Get/Set wrap the typed accessors into a Value, for the interpreter's
// *aload/*astore opcode bodies which operate generically on the stack.
func (a *Array) Get(i int32) Value {
	switch a.ElementKind {
	case ElemInt:
		return Int(a.GetInt(i))
	case ElemLong:
		return Long(a.GetLong(i))
	case ElemFloat:
		return Float(a.GetFloat(i))
	case ElemDouble:
		return Double(a.GetDouble(i))
	case ElemByte:
		return Int(int32(a.GetByte(i)))
	case ElemChar:
		return Int(int32(a.GetChar(i)))
	case ElemShort:
		return Int(int32(a.GetShort(i)))
	default:
		return Ref(a.GetRef(i))
	}
}

func (a *Array) Set(i int32, v Value) {
	switch a.ElementKind {
	case ElemInt:
		a.SetInt(i, v.I)
	case ElemLong:
		a.SetLong(i, v.L)
	case ElemFloat:
		a.SetFloat(i, v.F)
	case ElemDouble:
		a.SetDouble(i, v.D)
	case ElemByte:
		a.SetByte(i, int8(v.I))
	case ElemChar:
		a.SetChar(i, uint16(v.I))
	case ElemShort:
		a.SetShort(i, int16(v.I))
	default:
		a.SetRef(i, v.Ref)
	}
}
