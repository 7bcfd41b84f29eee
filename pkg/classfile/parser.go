package classfile

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// ParseFile reads and parses a .class file from disk.
func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr(ErrTruncated, err, "reading %s", path)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads a single class file from r, per JVM specification section 4.1.
func Parse(r io.Reader) (*ClassFile, error) {
	c := newCursor(r)

	magicGot, err := c.u32()
	if err != nil {
		return nil, err
	}
	if magicGot != magic {
		return nil, newErr(ErrMalformedInstruction, "bad magic 0x%08X", magicGot)
	}

	minor, err := c.u16()
	if err != nil {
		return nil, err
	}
	major, err := c.u16()
	if err != nil {
		return nil, err
	}

	pool, err := parseConstantPool(c)
	if err != nil {
		return nil, err
	}

	accessFlags, err := c.u16()
	if err != nil {
		return nil, err
	}
	thisClass, err := c.u16()
	if err != nil {
		return nil, err
	}
	superClass, err := c.u16()
	if err != nil {
		return nil, err
	}

	interfacesCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	interfaces := make([]uint16, interfacesCount)
	for i := range interfaces {
		if interfaces[i], err = c.u16(); err != nil {
			return nil, err
		}
	}

	fields, err := parseFields(c, pool)
	if err != nil {
		return nil, err
	}
	methods, err := parseMethods(c, pool)
	if err != nil {
		return nil, err
	}
	attributes, err := parseAttributes(c, pool)
	if err != nil {
		return nil, err
	}

	return &ClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		Pool:         pool,
		AccessFlags:  accessFlags,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Attributes:   attributes,
	}, nil
}

// parseConstantPool reads constant_pool_count-1 entries, 1-indexed, leaving
// a nil placeholder after every Long/Double per section 4.4.5.
func parseConstantPool(c *cursor) (*Pool, error) {
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, count) // entries[0] unused
	for i := 1; i < int(count); i++ {
		tag, err := c.u8()
		if err != nil {
			return nil, err
		}
		entry, wide, err := parseConstantEntry(c, tag)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
		if wide {
			i++ // next index is an unaddressable placeholder
		}
	}
	return poolFromEntries(entries), nil
}

func parseConstantEntry(c *cursor, tag uint8) (entry Entry, wide bool, err error) {
	switch tag {
	case TagUtf8:
		length, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		raw, err := c.bytes(int(length))
		if err != nil {
			return nil, false, err
		}
		return &Utf8{Value: decodeModifiedUTF8(raw)}, false, nil
	case TagInteger:
		v, err := c.i32()
		return &Integer{Value: v}, false, err
	case TagFloat:
		v, err := c.f32()
		return &Float{Value: v}, false, err
	case TagLong:
		v, err := c.i64()
		return &Long{Value: v}, true, err
	case TagDouble:
		v, err := c.f64()
		return &Double{Value: v}, true, err
	case TagClass:
		v, err := c.u16()
		return &Class{NameIndex: v}, false, err
	case TagString:
		v, err := c.u16()
		return &String{StringIndex: v}, false, err
	case TagFieldref:
		ci, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		ni, err := c.u16()
		return &Fieldref{ClassIndex: ci, NameAndTypeIndex: ni}, false, err
	case TagMethodref:
		ci, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		ni, err := c.u16()
		return &Methodref{ClassIndex: ci, NameAndTypeIndex: ni}, false, err
	case TagInterfaceMethodref:
		ci, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		ni, err := c.u16()
		return &InterfaceMethodref{ClassIndex: ci, NameAndTypeIndex: ni}, false, err
	case TagNameAndType:
		ni, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		di, err := c.u16()
		return &NameAndType{NameIndex: ni, DescriptorIndex: di}, false, err
	case TagMethodHandle:
		kind, err := c.u8()
		if err != nil {
			return nil, false, err
		}
		idx, err := c.u16()
		return &MethodHandle{ReferenceKind: kind, ReferenceIndex: idx}, false, err
	case TagMethodType:
		v, err := c.u16()
		return &MethodType{DescriptorIndex: v}, false, err
	case TagDynamic:
		bi, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		ni, err := c.u16()
		return &Dynamic{BootstrapMethodAttrIndex: bi, NameAndTypeIndex: ni}, false, err
	case TagInvokeDynamic:
		bi, err := c.u16()
		if err != nil {
			return nil, false, err
		}
		ni, err := c.u16()
		return &InvokeDynamic{BootstrapMethodAttrIndex: bi, NameAndTypeIndex: ni}, false, err
	case TagModule:
		v, err := c.u16()
		return &Module{NameIndex: v}, false, err
	case TagPackage:
		v, err := c.u16()
		return &Package{NameIndex: v}, false, err
	default:
		return nil, false, newErr(ErrInvalidConstant, "unknown tag %d", tag)
	}
}

func parseFields(c *cursor, pool *Pool) ([]*FieldInfo, error) {
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	out := make([]*FieldInfo, count)
	for i := range out {
		accessFlags, err := c.u16()
		if err != nil {
			return nil, err
		}
		nameIdx, err := c.u16()
		if err != nil {
			return nil, err
		}
		descIdx, err := c.u16()
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttributes(c, pool)
		if err != nil {
			return nil, err
		}
		out[i] = &FieldInfo{AccessFlags: accessFlags, NameIndex: nameIdx, DescriptorIndex: descIdx, Attributes: attrs}
	}
	return out, nil
}

func parseMethods(c *cursor, pool *Pool) ([]*MethodInfo, error) {
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	out := make([]*MethodInfo, count)
	for i := range out {
		accessFlags, err := c.u16()
		if err != nil {
			return nil, err
		}
		nameIdx, err := c.u16()
		if err != nil {
			return nil, err
		}
		descIdx, err := c.u16()
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttributes(c, pool)
		if err != nil {
			return nil, err
		}
		out[i] = &MethodInfo{AccessFlags: accessFlags, NameIndex: nameIdx, DescriptorIndex: descIdx, Attributes: attrs}
	}
	return out, nil
}

// parseAttributes reads an attributes_count-prefixed list, dispatching on
// the attribute's name (resolved via the pool) to a structural type, or
// falling back to UnknownAttribute for anything this package does not
// model — preserving the bytes verbatim keeps Write round-trip exact.
func parseAttributes(c *cursor, pool *Pool) ([]Attribute, error) {
	count, err := c.u16()
	if err != nil {
		return nil, err
	}
	out := make([]Attribute, count)
	for i := range out {
		nameIdx, err := c.u16()
		if err != nil {
			return nil, err
		}
		name, err := pool.Utf8At(nameIdx)
		if err != nil {
			return nil, err
		}
		length, err := c.u32()
		if err != nil {
			return nil, err
		}
		body, err := c.bytes(int(length))
		if err != nil {
			return nil, err
		}
		attr, err := parseOneAttribute(name, body, pool)
		if err != nil {
			return nil, err
		}
		out[i] = attr
	}
	return out, nil
}

// parseOneAttribute decodes one attribute body and enforces the
// attribute_length contract of section 4.7: the structural parsers must
// consume body exactly — leftover bytes or a read past the end are an
// AttributeLengthMismatch, not a Truncated stream (the class file itself
// may continue perfectly well after the corrupt attribute).
func parseOneAttribute(name string, body []byte, pool *Pool) (Attribute, error) {
	br := bytes.NewReader(body)
	attr, err := parseAttributeBody(name, newCursor(br), body, pool)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) && cerr.Kind == ErrTruncated {
			return nil, wrapErr(ErrAttributeLengthMismatch, err, "attribute %s overran its %d-byte length", name, len(body))
		}
		return nil, err
	}
	if !rawCaptured(attr) && br.Len() != 0 {
		return nil, newErr(ErrAttributeLengthMismatch, "attribute %s left %d of %d bytes unconsumed", name, br.Len(), len(body))
	}
	return attr, nil
}

// rawCaptured reports whether attr preserves its body wholesale rather
// than decoding it field by field; the exact-consumption check cannot
// apply to those.
func rawCaptured(attr Attribute) bool {
	switch attr.(type) {
	case *UnknownAttribute, *ModuleAttribute, *SourceDebugExtensionAttribute,
		*RuntimeAnnotationsAttribute, *RuntimeParameterAnnotationsAttribute,
		*RuntimeTypeAnnotationsAttribute, *AnnotationDefaultAttribute:
		return true
	}
	return false
}

func parseAttributeBody(name string, bc *cursor, body []byte, pool *Pool) (Attribute, error) {
	switch name {
	case "Code":
		return parseCodeAttribute(bc, pool)
	case "LineNumberTable":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]LineNumberEntry, n)
		for i := range entries {
			if entries[i].StartPC, err = bc.u16(); err != nil {
				return nil, err
			}
			if entries[i].LineNumber, err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &LineNumberTableAttribute{Entries: entries}, nil
	case "LocalVariableTable":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]LocalVariableEntry, n)
		for i := range entries {
			e := &entries[i]
			if e.StartPC, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.Length, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.NameIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.DescriptorIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.Index, err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &LocalVariableTableAttribute{Entries: entries}, nil
	case "LocalVariableTypeTable":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		entries := make([]LocalVariableTypeEntry, n)
		for i := range entries {
			e := &entries[i]
			if e.StartPC, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.Length, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.NameIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.SignatureIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.Index, err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &LocalVariableTypeTableAttribute{Entries: entries}, nil
	case "ConstantValue":
		idx, err := bc.u16()
		return &ConstantValueAttribute{ValueIndex: idx}, err
	case "Exceptions":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint16, n)
		for i := range idxs {
			if idxs[i], err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &ExceptionsAttribute{ExceptionIndexes: idxs}, nil
	case "InnerClasses":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		classes := make([]InnerClassEntry, n)
		for i := range classes {
			e := &classes[i]
			if e.InnerClassInfoIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.OuterClassInfoIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.InnerNameIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if e.InnerClassAccessFlags, err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &InnerClassesAttribute{Classes: classes}, nil
	case "EnclosingMethod":
		ci, err := bc.u16()
		if err != nil {
			return nil, err
		}
		mi, err := bc.u16()
		return &EnclosingMethodAttribute{ClassIndex: ci, MethodIndex: mi}, err
	case "Synthetic":
		return &SyntheticAttribute{}, nil
	case "Signature":
		idx, err := bc.u16()
		return &SignatureAttribute{SignatureIndex: idx}, err
	case "SourceFile":
		idx, err := bc.u16()
		return &SourceFileAttribute{SourceFileIndex: idx}, err
	case "SourceDebugExtension":
		return &SourceDebugExtensionAttribute{Data: body}, nil
	case "Deprecated":
		return &DeprecatedAttribute{}, nil
	case "RuntimeVisibleAnnotations":
		return &RuntimeAnnotationsAttribute{Visible: true, Raw: body}, nil
	case "RuntimeInvisibleAnnotations":
		return &RuntimeAnnotationsAttribute{Visible: false, Raw: body}, nil
	case "RuntimeVisibleParameterAnnotations":
		return &RuntimeParameterAnnotationsAttribute{Visible: true, Raw: body}, nil
	case "RuntimeInvisibleParameterAnnotations":
		return &RuntimeParameterAnnotationsAttribute{Visible: false, Raw: body}, nil
	case "RuntimeVisibleTypeAnnotations":
		return &RuntimeTypeAnnotationsAttribute{Visible: true, Raw: body}, nil
	case "RuntimeInvisibleTypeAnnotations":
		return &RuntimeTypeAnnotationsAttribute{Visible: false, Raw: body}, nil
	case "AnnotationDefault":
		return &AnnotationDefaultAttribute{Raw: body}, nil
	case "BootstrapMethods":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		methods := make([]BootstrapMethod, n)
		for i := range methods {
			ref, err := bc.u16()
			if err != nil {
				return nil, err
			}
			argc, err := bc.u16()
			if err != nil {
				return nil, err
			}
			args := make([]uint16, argc)
			for j := range args {
				if args[j], err = bc.u16(); err != nil {
					return nil, err
				}
			}
			methods[i] = BootstrapMethod{MethodRefIndex: ref, Arguments: args}
		}
		return &BootstrapMethodsAttribute{Methods: methods}, nil
	case "MethodParameters":
		n, err := bc.u8()
		if err != nil {
			return nil, err
		}
		params := make([]MethodParameter, n)
		for i := range params {
			if params[i].NameIndex, err = bc.u16(); err != nil {
				return nil, err
			}
			if params[i].AccessFlags, err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &MethodParametersAttribute{Parameters: params}, nil
	case "Module":
		return &ModuleAttribute{Raw: body}, nil
	case "ModulePackages":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint16, n)
		for i := range idxs {
			if idxs[i], err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &ModulePackagesAttribute{PackageIndexes: idxs}, nil
	case "ModuleMainClass":
		idx, err := bc.u16()
		return &ModuleMainClassAttribute{MainClassIndex: idx}, err
	case "NestHost":
		idx, err := bc.u16()
		return &NestHostAttribute{HostClassIndex: idx}, err
	case "NestMembers":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint16, n)
		for i := range idxs {
			if idxs[i], err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &NestMembersAttribute{Classes: idxs}, nil
	case "Record":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		components := make([]RecordComponent, n)
		for i := range components {
			nameIdx, err := bc.u16()
			if err != nil {
				return nil, err
			}
			descIdx, err := bc.u16()
			if err != nil {
				return nil, err
			}
			attrs, err := parseAttributes(bc, pool)
			if err != nil {
				return nil, err
			}
			components[i] = RecordComponent{NameIndex: nameIdx, DescriptorIndex: descIdx, Attributes: attrs}
		}
		return &RecordAttribute{Components: components}, nil
	case "PermittedSubclasses":
		n, err := bc.u16()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint16, n)
		for i := range idxs {
			if idxs[i], err = bc.u16(); err != nil {
				return nil, err
			}
		}
		return &PermittedSubclassesAttribute{Classes: idxs}, nil
	default:
		return &UnknownAttribute{Name: name, Data: body}, nil
	}
}

// parseCodeAttribute reads the Code_attribute body: bytecode, exception
// table, and nested attributes (section 4.7.3).
func parseCodeAttribute(c *cursor, pool *Pool) (*CodeAttribute, error) {
	maxStack, err := c.u16()
	if err != nil {
		return nil, err
	}
	maxLocals, err := c.u16()
	if err != nil {
		return nil, err
	}
	codeLength, err := c.u32()
	if err != nil {
		return nil, err
	}
	code, err := c.bytes(int(codeLength))
	if err != nil {
		return nil, err
	}

	excCount, err := c.u16()
	if err != nil {
		return nil, err
	}
	handlers := make([]ExceptionHandler, excCount)
	for i := range handlers {
		h := &handlers[i]
		if h.StartPC, err = c.u16(); err != nil {
			return nil, err
		}
		if h.EndPC, err = c.u16(); err != nil {
			return nil, err
		}
		if h.HandlerPC, err = c.u16(); err != nil {
			return nil, err
		}
		if h.CatchType, err = c.u16(); err != nil {
			return nil, err
		}
	}

	attrs, err := parseAttributes(c, pool)
	if err != nil {
		return nil, err
	}

	return &CodeAttribute{
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Code:       code,
		Exceptions: handlers,
		Attributes: attrs,
	}, nil
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8 (section 4.4.7): a
// superset of UTF-8 whose only differences from standard UTF-8 are the
// encoding of NUL as two bytes and supplementary characters as a pair of
// three-byte surrogate sequences instead of one four-byte sequence. Class
// files produced by javac and carrying only BMP characters or ordinary
// ASCII decode identically to standard UTF-8, which is the overwhelmingly
// common case; full surrogate-pair re-encoding is handled explicitly here
// since the JDK's own bootstrap classes use it for some identifiers.
func decodeModifiedUTF8(b []byte) string {
	var out []rune
	for i := 0; i < len(b); {
		b0 := b[i]
		switch {
		case b0&0x80 == 0:
			out = append(out, rune(b0))
			i++
		case b0&0xE0 == 0xC0 && i+1 < len(b):
			r := (rune(b0&0x1F) << 6) | rune(b[i+1]&0x3F)
			out = append(out, r)
			i += 2
		case b0&0xF0 == 0xE0 && i+5 < len(b) && b[i+3] == 0xED:
			// Two three-byte sequences encoding a surrogate pair.
			hi := (rune(b0&0x0F) << 12) | (rune(b[i+1]&0x3F) << 6) | rune(b[i+2]&0x3F)
			lo := (rune(b[i+3]&0x0F) << 12) | (rune(b[i+4]&0x3F) << 6) | rune(b[i+5]&0x3F)
			r := 0x10000 + ((hi - 0xD800) << 10) + (lo - 0xDC00)
			out = append(out, r)
			i += 6
		case b0&0xF0 == 0xE0 && i+2 < len(b):
			r := (rune(b0&0x0F) << 12) | (rune(b[i+1]&0x3F) << 6) | rune(b[i+2]&0x3F)
			out = append(out, r)
			i += 3
		default:
			out = append(out, rune(b0))
			i++
		}
	}
	return string(out)
}
