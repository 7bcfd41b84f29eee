package classfile

import "fmt"

// Constant pool tags, per JVM specification section 4.4.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// MethodHandle reference kinds, table 5.4.3.5-A: how a CONSTANT_MethodHandle
// entry's reference_index should be dereferenced and invoked.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// Entry is implemented by every constant pool constant. Index 0 and the
// placeholder slot after a Long/Double are never addressable (nil entries).
type Entry interface {
	Tag() uint8
}

type Utf8 struct{ Value string }

func (c *Utf8) Tag() uint8 { return TagUtf8 }

type Integer struct{ Value int32 }

func (c *Integer) Tag() uint8 { return TagInteger }

type Float struct{ Value float32 }

func (c *Float) Tag() uint8 { return TagFloat }

type Long struct{ Value int64 }

func (c *Long) Tag() uint8 { return TagLong }

type Double struct{ Value float64 }

func (c *Double) Tag() uint8 { return TagDouble }

type Class struct{ NameIndex uint16 }

func (c *Class) Tag() uint8 { return TagClass }

type String struct{ StringIndex uint16 }

func (c *String) Tag() uint8 { return TagString }

type Fieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *Fieldref) Tag() uint8 { return TagFieldref }

type Methodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *Methodref) Tag() uint8 { return TagMethodref }

type InterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *InterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type NameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *NameAndType) Tag() uint8 { return TagNameAndType }

type MethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *MethodHandle) Tag() uint8 { return TagMethodHandle }

type MethodType struct{ DescriptorIndex uint16 }

func (c *MethodType) Tag() uint8 { return TagMethodType }

type Dynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *Dynamic) Tag() uint8 { return TagDynamic }

type InvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *InvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

type Module struct{ NameIndex uint16 }

func (c *Module) Tag() uint8 { return TagModule }

type Package struct{ NameIndex uint16 }

func (c *Package) Tag() uint8 { return TagPackage }

// Pool is the indexed, 1-based, append-only table of constants for a single
// class file. It owns UTF-8 interning: a second Add call for an identical
// Utf8 payload returns the already-present index (spec.md section 4.2).
type Pool struct {
	entries []Entry // entries[0] is always nil (reserved)
	utf8idx map[string]uint16
}

// NewPool creates an empty pool. Index 0 is reserved immediately.
func NewPool() *Pool {
	return &Pool{entries: []Entry{nil}, utf8idx: make(map[string]uint16)}
}

// poolFromEntries wraps a slice already produced by the parser (entries[0]
// is the reserved nil slot, double-wide placeholders are also nil).
func poolFromEntries(entries []Entry) *Pool {
	p := &Pool{entries: entries, utf8idx: make(map[string]uint16)}
	for i, e := range entries {
		if u, ok := e.(*Utf8); ok {
			if _, exists := p.utf8idx[u.Value]; !exists {
				p.utf8idx[u.Value] = uint16(i)
			}
		}
	}
	return p
}

// Len returns constant_pool_count: max index + 1 (it includes the
// unaddressable double-wide placeholder slot).
func (p *Pool) Len() int { return len(p.entries) }

// Get returns the entry at index, or nil if the index is unset (index 0 or
// a double-wide placeholder).
func (p *Pool) Get(index uint16) Entry {
	if int(index) >= len(p.entries) {
		return nil
	}
	return p.entries[index]
}

func (p *Pool) add(e Entry) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	return idx
}

// AddUtf8 interns a UTF-8 constant: a repeat call with the same string
// returns the existing index (Testable Property #4).
func (p *Pool) AddUtf8(s string) uint16 {
	if idx, ok := p.utf8idx[s]; ok {
		return idx
	}
	idx := p.add(&Utf8{Value: s})
	p.utf8idx[s] = idx
	return idx
}

func (p *Pool) AddInteger(v int32) uint16 { return p.add(&Integer{Value: v}) }
func (p *Pool) AddFloat(v float32) uint16 { return p.add(&Float{Value: v}) }

// AddLong allocates the double-wide slot pair and returns the addressable
// first index.
func (p *Pool) AddLong(v int64) uint16 {
	idx := p.add(&Long{Value: v})
	p.add(nil) // historical double-wide placeholder
	return idx
}

func (p *Pool) AddDouble(v float64) uint16 {
	idx := p.add(&Double{Value: v})
	p.add(nil)
	return idx
}

func (p *Pool) AddClass(name string) uint16 {
	return p.add(&Class{NameIndex: p.AddUtf8(name)})
}

func (p *Pool) AddString(s string) uint16 {
	return p.add(&String{StringIndex: p.AddUtf8(s)})
}

func (p *Pool) AddNameAndType(name, descriptor string) uint16 {
	return p.add(&NameAndType{NameIndex: p.AddUtf8(name), DescriptorIndex: p.AddUtf8(descriptor)})
}

func (p *Pool) AddFieldRef(className, name, descriptor string) uint16 {
	classIdx := p.AddClass(className)
	natIdx := p.AddNameAndType(name, descriptor)
	return p.add(&Fieldref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
}

func (p *Pool) AddMethodRef(className, name, descriptor string) uint16 {
	classIdx := p.AddClass(className)
	natIdx := p.AddNameAndType(name, descriptor)
	return p.add(&Methodref{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
}

// Utf8At returns the Utf8 string at index, or an *Error of kind
// InvalidConstantIndex / InvalidConstant.
func (p *Pool) Utf8At(index uint16) (string, error) {
	e := p.Get(index)
	if e == nil {
		return "", newErr(ErrInvalidConstantIndex, "index %d", index)
	}
	u, ok := e.(*Utf8)
	if !ok {
		return "", newErr(ErrInvalidConstant, "index %d: expected Utf8, got tag %d", index, e.Tag())
	}
	return u.Value, nil
}

// ClassNameAt resolves a CONSTANT_Class_info to its fully qualified name.
func (p *Pool) ClassNameAt(index uint16) (string, error) {
	e := p.Get(index)
	if e == nil {
		return "", newErr(ErrInvalidConstantIndex, "index %d", index)
	}
	c, ok := e.(*Class)
	if !ok {
		return "", newErr(ErrInvalidConstant, "index %d: expected Class, got tag %d", index, e.Tag())
	}
	return p.Utf8At(c.NameIndex)
}

// NameAndTypeAt resolves a CONSTANT_NameAndType_info into its two strings.
func (p *Pool) NameAndTypeAt(index uint16) (name, descriptor string, err error) {
	e := p.Get(index)
	if e == nil {
		return "", "", newErr(ErrInvalidConstantIndex, "index %d", index)
	}
	nat, ok := e.(*NameAndType)
	if !ok {
		return "", "", newErr(ErrInvalidConstant, "index %d: expected NameAndType, got tag %d", index, e.Tag())
	}
	name, err = p.Utf8At(nat.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8At(nat.DescriptorIndex)
	return name, descriptor, err
}

// Ref holds a resolved field or method reference: the declaring class name,
// member name and descriptor.
type Ref struct {
	ClassName  string
	Name       string
	Descriptor string
}

// FieldrefAt resolves a CONSTANT_Fieldref_info.
func (p *Pool) FieldrefAt(index uint16) (*Ref, error) {
	e := p.Get(index)
	f, ok := e.(*Fieldref)
	if !ok {
		return nil, newErr(ErrInvalidConstant, "index %d: expected Fieldref", index)
	}
	return p.resolveRef(f.ClassIndex, f.NameAndTypeIndex)
}

// MethodrefAt resolves a CONSTANT_Methodref_info.
func (p *Pool) MethodrefAt(index uint16) (*Ref, error) {
	e := p.Get(index)
	m, ok := e.(*Methodref)
	if !ok {
		return nil, newErr(ErrInvalidConstant, "index %d: expected Methodref", index)
	}
	return p.resolveRef(m.ClassIndex, m.NameAndTypeIndex)
}

// InterfaceMethodrefAt resolves a CONSTANT_InterfaceMethodref_info.
func (p *Pool) InterfaceMethodrefAt(index uint16) (*Ref, error) {
	e := p.Get(index)
	m, ok := e.(*InterfaceMethodref)
	if !ok {
		return nil, newErr(ErrInvalidConstant, "index %d: expected InterfaceMethodref", index)
	}
	return p.resolveRef(m.ClassIndex, m.NameAndTypeIndex)
}

// AnyMethodrefAt resolves either a Methodref or InterfaceMethodref at index;
// some JDK classes reference static interface methods via the latter.
func (p *Pool) AnyMethodrefAt(index uint16) (*Ref, error) {
	if ref, err := p.MethodrefAt(index); err == nil {
		return ref, nil
	}
	return p.InterfaceMethodrefAt(index)
}

// InvokeDynamicAt resolves a CONSTANT_InvokeDynamic_info, the pool entry
// an invokedynamic instruction's index operand names.
func (p *Pool) InvokeDynamicAt(index uint16) (*InvokeDynamic, error) {
	e := p.Get(index)
	id, ok := e.(*InvokeDynamic)
	if !ok {
		return nil, newErr(ErrInvalidConstant, "index %d: expected InvokeDynamic", index)
	}
	return id, nil
}

// DynamicAt resolves a CONSTANT_Dynamic_info (a "condy" constant), the
// pool entry ldc/ldc_w/ldc2_w consult for a dynamically-computed constant.
func (p *Pool) DynamicAt(index uint16) (*Dynamic, error) {
	e := p.Get(index)
	d, ok := e.(*Dynamic)
	if !ok {
		return nil, newErr(ErrInvalidConstant, "index %d: expected Dynamic", index)
	}
	return d, nil
}

func (p *Pool) resolveRef(classIndex, natIndex uint16) (*Ref, error) {
	className, err := p.ClassNameAt(classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving class: %w", err)
	}
	name, descriptor, err := p.NameAndTypeAt(natIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving name-and-type: %w", err)
	}
	return &Ref{ClassName: className, Name: name, Descriptor: descriptor}, nil
}
