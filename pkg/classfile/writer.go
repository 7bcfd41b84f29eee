package classfile

// Write serializes a ClassFile back to its wire format. Round-tripping a
// freshly parsed ClassFile through Write reproduces the original bytes,
// since every attribute this package does not structurally model is
// retained verbatim in an UnknownAttribute.
func Write(c *ClassFile) []byte {
	b := newBuilder()
	b.u32(magic)
	b.u16(c.MinorVersion)
	b.u16(c.MajorVersion)
	writeConstantPool(b, c.Pool)
	b.u16(c.AccessFlags)
	b.u16(c.ThisClass)
	b.u16(c.SuperClass)
	b.u16(uint16(len(c.Interfaces)))
	for _, idx := range c.Interfaces {
		b.u16(idx)
	}
	writeFields(b, c.Pool, c.Fields)
	writeMethods(b, c.Pool, c.Methods)
	writeAttributes(b, c.Pool, c.Attributes)
	return b.Bytes()
}

func writeConstantPool(b *builder, p *Pool) {
	b.u16(uint16(p.Len()))
	for i := 1; i < p.Len(); i++ {
		e := p.entries[i]
		if e == nil {
			continue // double-wide placeholder, already emitted by the Long/Double before it
		}
		writeConstantEntry(b, e)
	}
}

func writeConstantEntry(b *builder, e Entry) {
	b.u8(e.Tag())
	switch v := e.(type) {
	case *Utf8:
		enc := encodeModifiedUTF8(v.Value)
		b.u16(uint16(len(enc)))
		b.raw(enc)
	case *Integer:
		b.i32(v.Value)
	case *Float:
		b.f32(v.Value)
	case *Long:
		b.i64(v.Value)
	case *Double:
		b.f64(v.Value)
	case *Class:
		b.u16(v.NameIndex)
	case *String:
		b.u16(v.StringIndex)
	case *Fieldref:
		b.u16(v.ClassIndex)
		b.u16(v.NameAndTypeIndex)
	case *Methodref:
		b.u16(v.ClassIndex)
		b.u16(v.NameAndTypeIndex)
	case *InterfaceMethodref:
		b.u16(v.ClassIndex)
		b.u16(v.NameAndTypeIndex)
	case *NameAndType:
		b.u16(v.NameIndex)
		b.u16(v.DescriptorIndex)
	case *MethodHandle:
		b.u8(v.ReferenceKind)
		b.u16(v.ReferenceIndex)
	case *MethodType:
		b.u16(v.DescriptorIndex)
	case *Dynamic:
		b.u16(v.BootstrapMethodAttrIndex)
		b.u16(v.NameAndTypeIndex)
	case *InvokeDynamic:
		b.u16(v.BootstrapMethodAttrIndex)
		b.u16(v.NameAndTypeIndex)
	case *Module:
		b.u16(v.NameIndex)
	case *Package:
		b.u16(v.NameIndex)
	}
}

func writeFields(b *builder, pool *Pool, fields []*FieldInfo) {
	b.u16(uint16(len(fields)))
	for _, f := range fields {
		b.u16(f.AccessFlags)
		b.u16(f.NameIndex)
		b.u16(f.DescriptorIndex)
		writeAttributes(b, pool, f.Attributes)
	}
}

func writeMethods(b *builder, pool *Pool, methods []*MethodInfo) {
	b.u16(uint16(len(methods)))
	for _, m := range methods {
		b.u16(m.AccessFlags)
		b.u16(m.NameIndex)
		b.u16(m.DescriptorIndex)
		writeAttributes(b, pool, m.Attributes)
	}
}

func writeAttributes(b *builder, pool *Pool, attrs []Attribute) {
	b.u16(uint16(len(attrs)))
	for _, a := range attrs {
		writeOneAttribute(b, pool, a)
	}
}

// writeOneAttribute serializes a single attribute_info. The name index is
// resolved through the pool's interning table: since every structural name
// ("Code", "LineNumberTable", ...) was already present when the ClassFile
// was parsed, AddUtf8 finds the existing index rather than allocating one,
// keeping a parse-then-write round-trip byte-exact.
func writeOneAttribute(b *builder, pool *Pool, a Attribute) {
	body := newBuilder()
	writeAttributeBody(body, pool, a)
	b.u16(pool.AddUtf8(a.attributeName()))
	b.u32(uint32(body.Len()))
	b.raw(body.Bytes())
}

// writeAttributeBody serializes the attribute-specific payload (without
// the outer name-index/length header) for every structural attribute type.
func writeAttributeBody(b *builder, pool *Pool, a Attribute) {
	switch v := a.(type) {
	case *CodeAttribute:
		b.u16(v.MaxStack)
		b.u16(v.MaxLocals)
		b.u32(uint32(len(v.Code)))
		b.raw(v.Code)
		b.u16(uint16(len(v.Exceptions)))
		for _, h := range v.Exceptions {
			b.u16(h.StartPC)
			b.u16(h.EndPC)
			b.u16(h.HandlerPC)
			b.u16(h.CatchType)
		}
		writeAttributes(b, pool, v.Attributes)
	case *LineNumberTableAttribute:
		b.u16(uint16(len(v.Entries)))
		for _, e := range v.Entries {
			b.u16(e.StartPC)
			b.u16(e.LineNumber)
		}
	case *LocalVariableTableAttribute:
		b.u16(uint16(len(v.Entries)))
		for _, e := range v.Entries {
			b.u16(e.StartPC)
			b.u16(e.Length)
			b.u16(e.NameIndex)
			b.u16(e.DescriptorIndex)
			b.u16(e.Index)
		}
	case *LocalVariableTypeTableAttribute:
		b.u16(uint16(len(v.Entries)))
		for _, e := range v.Entries {
			b.u16(e.StartPC)
			b.u16(e.Length)
			b.u16(e.NameIndex)
			b.u16(e.SignatureIndex)
			b.u16(e.Index)
		}
	case *ConstantValueAttribute:
		b.u16(v.ValueIndex)
	case *ExceptionsAttribute:
		b.u16(uint16(len(v.ExceptionIndexes)))
		for _, idx := range v.ExceptionIndexes {
			b.u16(idx)
		}
	case *InnerClassesAttribute:
		b.u16(uint16(len(v.Classes)))
		for _, e := range v.Classes {
			b.u16(e.InnerClassInfoIndex)
			b.u16(e.OuterClassInfoIndex)
			b.u16(e.InnerNameIndex)
			b.u16(e.InnerClassAccessFlags)
		}
	case *EnclosingMethodAttribute:
		b.u16(v.ClassIndex)
		b.u16(v.MethodIndex)
	case *SyntheticAttribute:
	case *SignatureAttribute:
		b.u16(v.SignatureIndex)
	case *SourceFileAttribute:
		b.u16(v.SourceFileIndex)
	case *SourceDebugExtensionAttribute:
		b.raw(v.Data)
	case *DeprecatedAttribute:
	case *RuntimeAnnotationsAttribute:
		b.raw(v.Raw)
	case *RuntimeParameterAnnotationsAttribute:
		b.raw(v.Raw)
	case *RuntimeTypeAnnotationsAttribute:
		b.raw(v.Raw)
	case *AnnotationDefaultAttribute:
		b.raw(v.Raw)
	case *BootstrapMethodsAttribute:
		b.u16(uint16(len(v.Methods)))
		for _, m := range v.Methods {
			b.u16(m.MethodRefIndex)
			b.u16(uint16(len(m.Arguments)))
			for _, a := range m.Arguments {
				b.u16(a)
			}
		}
	case *MethodParametersAttribute:
		b.u8(uint8(len(v.Parameters)))
		for _, p := range v.Parameters {
			b.u16(p.NameIndex)
			b.u16(p.AccessFlags)
		}
	case *ModuleAttribute:
		b.raw(v.Raw)
	case *ModulePackagesAttribute:
		b.u16(uint16(len(v.PackageIndexes)))
		for _, idx := range v.PackageIndexes {
			b.u16(idx)
		}
	case *ModuleMainClassAttribute:
		b.u16(v.MainClassIndex)
	case *NestHostAttribute:
		b.u16(v.HostClassIndex)
	case *NestMembersAttribute:
		b.u16(uint16(len(v.Classes)))
		for _, idx := range v.Classes {
			b.u16(idx)
		}
	case *RecordAttribute:
		b.u16(uint16(len(v.Components)))
		for _, comp := range v.Components {
			b.u16(comp.NameIndex)
			b.u16(comp.DescriptorIndex)
			writeAttributes(b, pool, comp.Attributes)
		}
	case *PermittedSubclassesAttribute:
		b.u16(uint16(len(v.Classes)))
		for _, idx := range v.Classes {
			b.u16(idx)
		}
	case *UnknownAttribute:
		b.raw(v.Data)
	}
}

// encodeModifiedUTF8 is the inverse of decodeModifiedUTF8: NUL becomes the
// two-byte overlong form and supplementary characters become a surrogate
// pair of three-byte sequences, matching what javac emits.
func encodeModifiedUTF8(s string) []byte {
	var out []byte
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r > 0 && r <= 0x7F:
			out = append(out, byte(r))
		case r <= 0x7FF:
			out = append(out, byte(0xC0|(r>>6)), byte(0x80|(r&0x3F)))
		case r <= 0xFFFF:
			out = append(out, byte(0xE0|(r>>12)), byte(0x80|((r>>6)&0x3F)), byte(0x80|(r&0x3F)))
		default:
			adjusted := r - 0x10000
			hi := 0xD800 + (adjusted >> 10)
			lo := 0xDC00 + (adjusted & 0x3FF)
			out = append(out,
				byte(0xE0|(hi>>12)), byte(0x80|((hi>>6)&0x3F)), byte(0x80|(hi&0x3F)),
				byte(0xE0|(lo>>12)), byte(0x80|((lo>>6)&0x3F)), byte(0x80|(lo&0x3F)))
		}
	}
	return out
}
