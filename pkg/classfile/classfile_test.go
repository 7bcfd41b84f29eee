package classfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalClass constructs a tiny but legal class file in memory:
// public final class Minimal extends java.lang.Object { private int x; void m(){ return; } }
func buildMinimalClass() *ClassFile {
	pool := NewPool()
	thisIdx := pool.AddClass("Minimal")
	superIdx := pool.AddClass("java/lang/Object")
	fieldName := pool.AddUtf8("x")
	fieldDesc := pool.AddUtf8("I")
	methodName := pool.AddUtf8("m")
	methodDesc := pool.AddUtf8("()V")
	codeName := pool.AddUtf8("Code")

	code := []byte{OpReturn}
	codeAttr := &CodeAttribute{MaxStack: 0, MaxLocals: 1, Code: code}

	method := &MethodInfo{
		AccessFlags:     AccPublic,
		NameIndex:       methodName,
		DescriptorIndex: methodDesc,
		Attributes:      []Attribute{codeAttr},
	}
	field := &FieldInfo{
		AccessFlags:     AccPrivate,
		NameIndex:       fieldName,
		DescriptorIndex: fieldDesc,
	}
	_ = codeName

	return &ClassFile{
		MinorVersion: 0,
		MajorVersion: 65,
		Pool:         pool,
		AccessFlags:  AccPublic | AccFinal | AccSuper,
		ThisClass:    thisIdx,
		SuperClass:   superIdx,
		Fields:       []*FieldInfo{field},
		Methods:      []*MethodInfo{method},
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := buildMinimalClass()
	encoded := Write(original)

	parsed, err := Parse(bytes.NewReader(encoded))
	require.NoError(t, err)

	name, err := parsed.Name()
	require.NoError(t, err)
	assert.Equal(t, "Minimal", name)

	super, err := parsed.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", super)

	assert.Equal(t, uint16(65), parsed.MajorVersion)
	assert.Len(t, parsed.Fields, 1)
	assert.Len(t, parsed.Methods, 1)

	reencoded := Write(parsed)
	assert.Equal(t, encoded, reencoded, "parse-then-write must reproduce the original bytes")
}

// TestAttributeLengthMismatch: a structural attribute must consume its
// declared length exactly — leftover bytes and reads past the end both
// surface as AttributeLengthMismatch, not Truncated.
func TestAttributeLengthMismatch(t *testing.T) {
	pool := NewPool()

	// LineNumberTable declaring one entry but carrying two trailing bytes.
	overLong := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0xDE, 0xAD}
	_, err := parseOneAttribute("LineNumberTable", overLong, pool)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrAttributeLengthMismatch, cerr.Kind)

	// Code whose body ends two bytes into an eight-byte exception handler.
	short := []byte{
		0x00, 0x02, // max_stack
		0x00, 0x01, // max_locals
		0x00, 0x00, 0x00, 0x01, // code_length
		OpReturn,
		0x00, 0x01, // exception_table_length
		0x00, 0x00, // start_pc, then nothing
	}
	_, err = parseOneAttribute("Code", short, pool)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrAttributeLengthMismatch, cerr.Kind)

	// An unknown attribute is captured raw; no consumption check applies.
	attr, err := parseOneAttribute("SomeToolMetadata", []byte{1, 2, 3}, pool)
	require.NoError(t, err)
	assert.IsType(t, &UnknownAttribute{}, attr)
}

// TestDecodeReservedBytesValidated: invokeinterface's trailing byte and
// invokedynamic's two trailing bytes must be zero on the wire.
func TestDecodeReservedBytesValidated(t *testing.T) {
	var cerr *Error

	_, err := Decode([]byte{OpInvokeinterface, 0x00, 0x01, 0x01, 0x05})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMalformedInstruction, cerr.Kind)

	_, err = Decode([]byte{OpInvokedynamic, 0x00, 0x01, 0x00, 0x07})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMalformedInstruction, cerr.Kind)

	// The well-formed encodings still decode.
	instrs, err := Decode([]byte{OpInvokeinterface, 0x00, 0x01, 0x01, 0x00})
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, uint16(1), instrs[0].Index)

	_, err = Decode([]byte{OpInvokedynamic, 0x00, 0x01, 0x00, 0x00})
	require.NoError(t, err)
}

// TestIdentityMinimalClass: a bare class X extending java/lang/Object
// with no fields, methods, or attributes survives parse and re-emits
// byte-for-byte, magic and version included.
func TestIdentityMinimalClass(t *testing.T) {
	pool := NewPool()
	thisIdx := pool.AddClass("X")
	superIdx := pool.AddClass("java/lang/Object")
	input := Write(&ClassFile{
		MajorVersion: 52,
		Pool:         pool,
		AccessFlags:  AccPublic | AccSuper,
		ThisClass:    thisIdx,
		SuperClass:   superIdx,
	})
	assert.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00, 0x00, 0x34}, input[:8])

	parsed, err := Parse(bytes.NewReader(input))
	require.NoError(t, err)
	name, err := parsed.Name()
	require.NoError(t, err)
	assert.Equal(t, "X", name)
	assert.Equal(t, input, Write(parsed))
}

func TestConstantPoolInterning(t *testing.T) {
	p := NewPool()
	a := p.AddUtf8("java/lang/String")
	b := p.AddUtf8("java/lang/String")
	assert.Equal(t, a, b, "repeat AddUtf8 must return the existing index")

	c := p.AddUtf8("java/lang/Object")
	assert.NotEqual(t, a, c)
}

func TestConstantPoolDoubleWidth(t *testing.T) {
	p := NewPool()
	longIdx := p.AddLong(123456789012345)
	nextIdx := p.AddUtf8("after-long")

	assert.Nil(t, p.Get(longIdx+1), "the slot after a Long must be unaddressable")
	assert.Equal(t, int(longIdx)+2, int(nextIdx))

	v, ok := p.Get(longIdx).(*Long)
	require.True(t, ok)
	assert.EqualValues(t, 123456789012345, v.Value)
}

func TestFieldrefResolution(t *testing.T) {
	p := NewPool()
	idx := p.AddFieldRef("java/lang/System", "out", "Ljava/io/PrintStream;")

	ref, err := p.FieldrefAt(idx)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/System", ref.ClassName)
	assert.Equal(t, "out", ref.Name)
	assert.Equal(t, "Ljava/io/PrintStream;", ref.Descriptor)
}

func TestMethodrefInvalidIndex(t *testing.T) {
	p := NewPool()
	_, err := p.MethodrefAt(999)
	require.Error(t, err)
	var cfErr *Error
	require.ErrorAs(t, err, &cfErr)
}

func TestFindMethod(t *testing.T) {
	cf := buildMinimalClass()
	m, err := cf.FindMethod("m", "()V")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.AccessFlags&AccPublic != 0)

	none, err := cf.FindMethod("missing", "()V")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	cases := []string{
		"plain ascii",
		"<init>",
		"Lja\x00va/lang/Object;", // embedded NUL, overlong-encoded by javac
		"\U0001F600",               // supplementary character, surrogate-pair encoded
	}
	for _, s := range cases {
		enc := encodeModifiedUTF8(s)
		dec := decodeModifiedUTF8(enc)
		assert.Equal(t, s, dec)
	}
}

func TestDecodeBranchTargetsAreAbsolute(t *testing.T) {
	// goto +3 at offset 0 should target offset 3.
	code := []byte{OpGoto, 0x00, 0x03, OpNop}
	instrs, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, int32(3), instrs[0].Target)

	idx := OffsetIndex(instrs)
	assert.Equal(t, 1, idx[instrs[0].Target])
}

func TestDecodeTableswitchPadding(t *testing.T) {
	// tableswitch at offset 1 so padding must consume 2 bytes to reach the
	// next 4-byte boundary measured from the start of the bytecode array.
	code := []byte{
		OpNop,
		OpTableswitch,
		0, 0, // padding
		0, 0, 0, 10, // default -> offset 11
		0, 0, 0, 0, // low = 0
		0, 0, 0, 0, // high = 0
		0, 0, 0, 20, // targets[0] -> offset 21
	}
	instrs, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	sw := instrs[1]
	assert.Equal(t, int32(11), sw.Default)
	require.Len(t, sw.Targets, 1)
	assert.Equal(t, int32(21), sw.Targets[0])
}

func TestDecodeWideIinc(t *testing.T) {
	code := []byte{OpWide, OpIinc, 0x01, 0x00, 0xFF, 0xFF}
	instrs, err := Decode(code)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.True(t, instrs[0].Wide)
	assert.Equal(t, uint16(0x0100), instrs[0].Index)
	assert.Equal(t, int32(-1), instrs[0].IntOperand)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0xFE})
	require.Error(t, err)
	var cfErr *Error
	require.ErrorAs(t, err, &cfErr)
	assert.Equal(t, ErrMalformedInstruction, cfErr.Kind)
}
