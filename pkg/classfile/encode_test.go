package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeBranchRoundTrip exercises S3: a method using iload_0,
// ifge, ineg, ireturn must re-emit the same byte-offset for ifge's branch
// after a decode/encode cycle, and decoding the re-encoded bytes must
// still target the same instruction.
func TestEncodeDecodeBranchRoundTrip(t *testing.T) {
	// static int abs(int n) { if (n < 0) return -n; return n; }
	//   0: iload_0
	//   1: ifge 7      (offset of the second iload_0 at 7)
	//   4: iload_0
	//   5: ineg
	//   6: ireturn
	//   7: iload_0
	//   8: ireturn
	orig := []byte{
		OpIload0,
		OpIfge, 0x00, 0x06, // target = 1 + 6 = 7
		OpIload0,
		OpIneg,
		OpIreturn,
		OpIload0,
		OpIreturn,
	}
	instrs, err := Decode(orig)
	require.NoError(t, err)
	require.Len(t, instrs, 7)
	assert.Equal(t, int32(7), instrs[1].Target, "ifge must resolve to the byte offset of the second iload_0")

	re, err := Encode(instrs)
	require.NoError(t, err)
	assert.Equal(t, orig, re, "encode(decode(C)) must reproduce C exactly")

	// decode(encode(I)) = I: redecoding must preserve the same instruction
	// targets (branch-target invariance), even though the instruction
	// identity a branch points to is what must be preserved, not the raw
	// number, when instructions are added/removed. Here nothing changed,
	// so the byte offsets themselves must also match.
	instrs2, err := Decode(re)
	require.NoError(t, err)
	require.Len(t, instrs2, len(instrs))
	for i := range instrs {
		assert.Equal(t, instrs[i].Opcode, instrs2[i].Opcode)
		assert.Equal(t, instrs[i].Target, instrs2[i].Target)
	}
}

// TestEncodeTableswitchAlignment exercises S6: tableswitch's 0-3 padding
// bytes must survive a decode/encode cycle byte-for-byte, at multiple
// starting offsets so the alignment math is genuinely exercised rather
// than accidentally correct at offset 0.
func TestEncodeTableswitchAlignment(t *testing.T) {
	for _, prefix := range [][]byte{
		{},                    // tableswitch at offset 0
		{OpNop},               // tableswitch at offset 1
		{OpNop, OpNop},        // tableswitch at offset 2
		{OpNop, OpNop, OpNop}, // tableswitch at offset 3
	} {
		start := len(prefix)
		padLen := (4 - (start+1)%4) % 4
		body := append([]byte{}, prefix...)
		body = append(body, OpTableswitch)
		for i := 0; i < padLen; i++ {
			body = append(body, 0)
		}
		// default -> start (self), low=3, high=4, two targets -> start
		appendI32 := func(v int32) {
			body = append(body, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		}
		appendI32(0)
		appendI32(3)
		appendI32(4)
		appendI32(0)
		appendI32(0)
		body = append(body, OpIreturn)

		instrs, err := Decode(body)
		require.NoError(t, err, "prefix len %d", start)
		re, err := Encode(instrs)
		require.NoError(t, err)
		assert.Equal(t, body, re, "tableswitch at offset %d must round-trip its padding exactly", start)
	}
}

// TestEncodeLookupswitch exercises the binary-search variant's structural
// round trip alongside tableswitch.
func TestEncodeLookupswitch(t *testing.T) {
	body := []byte{OpLookupswitch, 0, 0, 0} // 3 pad bytes after opcode at offset 0
	appendI32 := func(v int32) {
		body = append(body, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	appendI32(0)  // default -> 0
	appendI32(2)  // npairs
	appendI32(10) // key
	appendI32(0)  // target -> 0
	appendI32(20) // key
	appendI32(0)  // target -> 0
	body = append(body, OpIreturn)

	instrs, err := Decode(body)
	require.NoError(t, err)
	re, err := Encode(instrs)
	require.NoError(t, err)
	assert.Equal(t, body, re)
}

// TestEncodeWideIinc covers the wide-prefixed form, which widens both the
// local-slot index and the increment to 16 bits.
func TestEncodeWideIinc(t *testing.T) {
	body := []byte{OpWide, OpIinc, 0x01, 0x00, 0xFF, 0xFF} // slot 256, inc -1
	instrs, err := Decode(body)
	require.NoError(t, err)
	require.True(t, instrs[0].Wide)
	assert.EqualValues(t, 256, instrs[0].Index)
	assert.EqualValues(t, -1, instrs[0].IntOperand)

	re, err := Encode(instrs)
	require.NoError(t, err)
	assert.Equal(t, body, re)
}
