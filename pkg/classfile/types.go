package classfile

// Access and modifier flags from table 4.1-A and friends. Only the bits
// actually tested by the resolver and verifier are named; the rest are
// still representable since AccessFlags is a plain uint16.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
)

const magic = 0xCAFEBABE

// ClassFile is the fully parsed representation of a .class file, per JVM
// specification section 4.1. Field names mirror the spec's ClassFile
// structure rather than the wire's underscored names.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *Pool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16 // 0 only for java/lang/Object
	Interfaces   []uint16
	Fields       []*FieldInfo
	Methods      []*MethodInfo
	Attributes   []Attribute
}

// Name resolves ThisClass to its fully qualified, slash-separated name.
func (c *ClassFile) Name() (string, error) { return c.Pool.ClassNameAt(c.ThisClass) }

// SuperName resolves SuperClass, returning "" for java/lang/Object.
func (c *ClassFile) SuperName() (string, error) {
	if c.SuperClass == 0 {
		return "", nil
	}
	return c.Pool.ClassNameAt(c.SuperClass)
}

// InterfaceNames resolves every entry of Interfaces in declaration order.
func (c *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(c.Interfaces))
	for i, idx := range c.Interfaces {
		n, err := c.Pool.ClassNameAt(idx)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}
	return names, nil
}

// IsInterface reports whether ACC_INTERFACE is set.
func (c *ClassFile) IsInterface() bool { return c.AccessFlags&AccInterface != 0 }

// FindMethod locates a method by name and descriptor, the key used by
// invocation resolution throughout the interpreter.
func (c *ClassFile) FindMethod(name, descriptor string) (*MethodInfo, error) {
	for _, m := range c.Methods {
		mn, err := c.Pool.Utf8At(m.NameIndex)
		if err != nil {
			return nil, err
		}
		if mn != name {
			continue
		}
		md, err := c.Pool.Utf8At(m.DescriptorIndex)
		if err != nil {
			return nil, err
		}
		if md == descriptor {
			return m, nil
		}
	}
	return nil, nil
}

// FindMethodsByName returns every overload sharing name, for resolution
// paths (invokedynamic bootstrap lookups, reflection) that disambiguate by
// descriptor only after enumerating candidates.
func (c *ClassFile) FindMethodsByName(name string) ([]*MethodInfo, error) {
	var out []*MethodInfo
	for _, m := range c.Methods {
		mn, err := c.Pool.Utf8At(m.NameIndex)
		if err != nil {
			return nil, err
		}
		if mn == name {
			out = append(out, m)
		}
	}
	return out, nil
}

// FindField locates a field by name; descriptor is not part of the key
// since the JVM forbids field name overloading within one class.
func (c *ClassFile) FindField(name string) (*FieldInfo, error) {
	for _, f := range c.Fields {
		fn, err := c.Pool.Utf8At(f.NameIndex)
		if err != nil {
			return nil, err
		}
		if fn == name {
			return f, nil
		}
	}
	return nil, nil
}

// BootstrapMethod returns the BootstrapMethods attribute's entry at
// index, the indirection an InvokeDynamic/Dynamic constant's
// BootstrapMethodAttrIndex points through (section 4.7.23). A class file
// with no invokedynamic/condy site has no BootstrapMethods attribute at
// all, in which case ok is false.
func (c *ClassFile) BootstrapMethod(index uint16) (*BootstrapMethod, bool) {
	for _, a := range c.Attributes {
		if bma, ok := a.(*BootstrapMethodsAttribute); ok {
			if int(index) < len(bma.Methods) {
				return &bma.Methods[index], true
			}
			return nil, false
		}
	}
	return nil, false
}

// FieldInfo is a single field_info structure (section 4.5).
type FieldInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// ConstantValue returns the field's ConstantValue attribute index, if
// present (0 means absent: static final fields are not required to carry
// one when they are assigned in <clinit> instead).
func (f *FieldInfo) ConstantValue() uint16 {
	for _, a := range f.Attributes {
		if cv, ok := a.(*ConstantValueAttribute); ok {
			return cv.ValueIndex
		}
	}
	return 0
}

// MethodInfo is a single method_info structure (section 4.6).
type MethodInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

func (m *MethodInfo) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// Code returns the method's Code attribute, or nil for native/abstract
// methods which carry none.
func (m *MethodInfo) Code() *CodeAttribute {
	for _, a := range m.Attributes {
		if code, ok := a.(*CodeAttribute); ok {
			return code
		}
	}
	return nil
}

// ExceptionHandler is one entry of a Code attribute's exception table
// (section 4.7.3): bytecode offsets, not translated instruction indices —
// the interpreter translates at dispatch time per the branch-target design
// in the interpreter package.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means catch-all (used to implement finally)
}

// CodeAttribute is the Code_attribute (section 4.7.3): the bytecode plus
// everything needed to execute it.
type CodeAttribute struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Exceptions []ExceptionHandler
	Attributes []Attribute // LineNumberTable, LocalVariableTable, StackMapTable, ...
}

// LineNumberTableAttribute maps bytecode offsets to source lines.
type LineNumberTableAttribute struct {
	Entries []LineNumberEntry
}

type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// LocalVariableTableAttribute describes the scope of local slots, used by
// debuggers and by reflection for parameter names when present.
type LocalVariableTableAttribute struct {
	Entries []LocalVariableEntry
}

type LocalVariableEntry struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Index           uint16
}

// LocalVariableTypeTableAttribute is the generic-signature counterpart of
// LocalVariableTableAttribute.
type LocalVariableTypeTableAttribute struct {
	Entries []LocalVariableTypeEntry
}

type LocalVariableTypeEntry struct {
	StartPC        uint16
	Length         uint16
	NameIndex      uint16
	SignatureIndex uint16
	Index          uint16
}

// ConstantValueAttribute (section 4.7.2) supplies the compile-time constant
// for a static final field.
type ConstantValueAttribute struct {
	ValueIndex uint16
}

// ExceptionsAttribute lists the checked exceptions a method declares
// (section 4.7.5); the verifier does not enforce it, javac does.
type ExceptionsAttribute struct {
	ExceptionIndexes []uint16
}

// InnerClassesAttribute (section 4.7.6).
type InnerClassesAttribute struct {
	Classes []InnerClassEntry
}

type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags uint16
}

// EnclosingMethodAttribute (section 4.7.7).
type EnclosingMethodAttribute struct {
	ClassIndex  uint16
	MethodIndex uint16 // 0 if the class is not enclosed by a method
}

// SyntheticAttribute (section 4.7.8) is a zero-length marker.
type SyntheticAttribute struct{}

// SignatureAttribute (section 4.7.9) carries a generic signature.
type SignatureAttribute struct {
	SignatureIndex uint16
}

// SourceFileAttribute (section 4.7.10).
type SourceFileAttribute struct {
	SourceFileIndex uint16
}

// SourceDebugExtensionAttribute (section 4.7.11) is opaque to the VM.
type SourceDebugExtensionAttribute struct {
	Data []byte
}

// DeprecatedAttribute (section 4.7.15) is a zero-length marker.
type DeprecatedAttribute struct{}

// RuntimeAnnotationsAttribute covers both the visible and invisible
// variants (sections 4.7.16-17); annotation payloads are kept raw since the
// interpreter has no reflection-level consumer for them yet.
type RuntimeAnnotationsAttribute struct {
	Visible bool
	Raw     []byte
}

// RuntimeParameterAnnotationsAttribute covers sections 4.7.18-19.
type RuntimeParameterAnnotationsAttribute struct {
	Visible bool
	Raw     []byte
}

// RuntimeTypeAnnotationsAttribute covers sections 4.7.20-21.
type RuntimeTypeAnnotationsAttribute struct {
	Visible bool
	Raw     []byte
}

// AnnotationDefaultAttribute (section 4.7.22).
type AnnotationDefaultAttribute struct {
	Raw []byte
}

// BootstrapMethod is one entry of a BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRefIndex uint16
	Arguments      []uint16
}

// BootstrapMethodsAttribute (section 4.7.23) backs invokedynamic and
// dynamic constant resolution.
type BootstrapMethodsAttribute struct {
	Methods []BootstrapMethod
}

// MethodParametersAttribute (section 4.7.24).
type MethodParametersAttribute struct {
	Parameters []MethodParameter
}

type MethodParameter struct {
	NameIndex   uint16 // 0 if unnamed
	AccessFlags uint16
}

// ModuleAttribute (section 4.7.25) is kept structurally minimal; the VM
// does not enforce the module system, only carries it for round-trip
// fidelity and for jlink-style tooling built on this package.
type ModuleAttribute struct {
	Raw []byte
}

// ModulePackagesAttribute (section 4.7.26).
type ModulePackagesAttribute struct {
	PackageIndexes []uint16
}

// ModuleMainClassAttribute (section 4.7.27).
type ModuleMainClassAttribute struct {
	MainClassIndex uint16
}

// NestHostAttribute (section 4.7.28).
type NestHostAttribute struct {
	HostClassIndex uint16
}

// NestMembersAttribute (section 4.7.29).
type NestMembersAttribute struct {
	Classes []uint16
}

// RecordComponent is one entry of a Record attribute.
type RecordComponent struct {
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// RecordAttribute (section 4.7.30).
type RecordAttribute struct {
	Components []RecordComponent
}

// PermittedSubclassesAttribute (section 4.7.31).
type PermittedSubclassesAttribute struct {
	Classes []uint16
}

// UnknownAttribute preserves any attribute this package does not model
// structurally, keeping parse-then-write round-trips byte-exact.
type UnknownAttribute struct {
	Name string
	Data []byte
}
