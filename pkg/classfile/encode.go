package classfile

// Encode is Decode's inverse: it serializes a linear instruction list back
// into a Code attribute's raw bytecode array. This is the half of the
// bidirectional instruction codec Decode alone doesn't provide — needed
// whenever a Code array is built or rewritten in memory (synthesized
// methods, proxy-class generation) rather than only parsed, since Write
// otherwise just echoes a parsed CodeAttribute's raw Code bytes back
// verbatim.
//
// Branch targets on the input instructions are absolute byte offsets that
// must identify another instruction's Offset field exactly (the same
// contract Decode produces) — Encode resolves each one to that
// instruction's *new* byte position with a two-pass walk: pass one learns
// every instruction's new offset and encoded size (sizes are fixed except
// for tableswitch/lookupswitch, whose padding depends on position), pass
// two emits bytes, recomputing each branch as the signed byte distance
// from the branch instruction to its target's new offset.
func Encode(instrs []Instruction) ([]byte, error) {
	origIndex := make(map[int32]int, len(instrs))
	for i, inst := range instrs {
		origIndex[int32(inst.Offset)] = i
	}

	newOffsets := make([]int, len(instrs))
	pos := 0
	for i, inst := range instrs {
		newOffsets[i] = pos
		size, err := instructionSize(inst, pos)
		if err != nil {
			return nil, err
		}
		pos += size
	}

	targetOffset := func(byteOffset int32) (int32, error) {
		idx, ok := origIndex[byteOffset]
		if !ok {
			return 0, newErr(ErrMalformedInstruction, "branch target %d is not an instruction boundary", byteOffset)
		}
		return int32(newOffsets[idx]), nil
	}

	b := newBuilder()
	for i, inst := range instrs {
		if err := encodeOne(b, inst, newOffsets[i], targetOffset); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// instructionSize reports the encoded byte length of inst when placed at
// byte position pos, without writing it — used by Encode's first pass to
// learn every instruction's new offset before any branch is resolved.
func instructionSize(inst Instruction, pos int) (int, error) {
	switch inst.Opcode {
	case OpBipush, OpLdc, OpNewarray:
		return 2, nil
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		if inst.Wide {
			return 4, nil
		}
		return 2, nil
	case OpSipush, OpLdcW, OpLdc2W:
		return 3, nil
	case OpIinc:
		if inst.Wide {
			return 6, nil
		}
		return 3, nil
	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle,
		OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple,
		OpIfAcmpeq, OpIfAcmpne, OpGoto, OpJsr, OpIfnull, OpIfnonnull:
		return 3, nil
	case OpGotoW, OpJsrW:
		return 5, nil
	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		return 3, nil
	case OpInvokeinterface, OpInvokedynamic:
		return 5, nil
	case OpMultianewarray:
		return 4, nil
	case OpTableswitch:
		padded := padTo4(pos, pos+1)
		count := int(inst.High - inst.Low + 1)
		if count < 0 {
			return 0, newErr(ErrMalformedInstruction, "tableswitch bad range at %d", pos)
		}
		return (padded - pos) + 12 + 4*count, nil
	case OpLookupswitch:
		padded := padTo4(pos, pos+1)
		return (padded - pos) + 8 + 8*len(inst.Targets), nil
	default:
		return 1, nil
	}
}

// encodeOne writes inst's bytes at its already-computed position pos,
// resolving any branch target through targetOffset.
func encodeOne(b *builder, inst Instruction, pos int, targetOffset func(int32) (int32, error)) error {
	switch inst.Opcode {
	case OpBipush, OpLdc, OpNewarray:
		b.u8(inst.Opcode)
	case OpSipush, OpLdcW, OpLdc2W,
		OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		b.u8(inst.Opcode)
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		if inst.Wide {
			b.u8(OpWide)
		}
		b.u8(inst.Opcode)
	case OpIinc:
		if inst.Wide {
			b.u8(OpWide)
		}
		b.u8(inst.Opcode)
	default:
		b.u8(inst.Opcode)
	}

	switch inst.Opcode {
	case OpBipush:
		b.i8(int8(inst.IntOperand))
	case OpSipush:
		b.i16(int16(inst.IntOperand))
	case OpLdc:
		b.u8(uint8(inst.Index))
	case OpLdcW, OpLdc2W:
		b.u16(inst.Index)
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		if inst.Wide {
			b.u16(inst.Index)
		} else {
			b.u8(uint8(inst.Index))
		}
	case OpIinc:
		if inst.Wide {
			b.u16(inst.Index)
			b.i16(int16(inst.IntOperand))
		} else {
			b.u8(uint8(inst.Index))
			b.i8(int8(inst.IntOperand))
		}
	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle,
		OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple,
		OpIfAcmpeq, OpIfAcmpne, OpGoto, OpJsr, OpIfnull, OpIfnonnull:
		dst, err := targetOffset(inst.Target)
		if err != nil {
			return err
		}
		b.i16(int16(dst - int32(pos)))
	case OpGotoW, OpJsrW:
		dst, err := targetOffset(inst.Target)
		if err != nil {
			return err
		}
		b.i32(dst - int32(pos))
	case OpTableswitch:
		return encodeTableswitch(b, inst, pos, targetOffset)
	case OpLookupswitch:
		return encodeLookupswitch(b, inst, pos, targetOffset)
	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		b.u16(inst.Index)
	case OpInvokeinterface:
		b.u16(inst.Index)
		b.u8(uint8(inst.IntOperand))
		b.u8(0)
	case OpInvokedynamic:
		b.u16(inst.Index)
		b.u16(0)
	case OpNewarray:
		b.u8(uint8(inst.IntOperand))
	case OpMultianewarray:
		b.u16(inst.Index)
		b.u8(uint8(inst.IntOperand))
	}
	return nil
}

func encodeTableswitch(b *builder, inst Instruction, pos int, targetOffset func(int32) (int32, error)) error {
	padded := padTo4(pos, pos+1) // opcode already emitted by encodeOne
	for p := pos + 1; p < padded; p++ {
		b.u8(0)
	}
	def, err := targetOffset(inst.Default)
	if err != nil {
		return err
	}
	b.i32(def - int32(pos))
	b.i32(inst.Low)
	b.i32(inst.High)
	for _, t := range inst.Targets {
		dst, err := targetOffset(t)
		if err != nil {
			return err
		}
		b.i32(dst - int32(pos))
	}
	return nil
}

func encodeLookupswitch(b *builder, inst Instruction, pos int, targetOffset func(int32) (int32, error)) error {
	padded := padTo4(pos, pos+1)
	for p := pos + 1; p < padded; p++ {
		b.u8(0)
	}
	def, err := targetOffset(inst.Default)
	if err != nil {
		return err
	}
	b.i32(def - int32(pos))
	b.i32(int32(len(inst.Targets)))
	for i, t := range inst.Targets {
		dst, err := targetOffset(t)
		if err != nil {
			return err
		}
		b.i32(inst.Keys[i])
		b.i32(dst - int32(pos))
	}
	return nil
}
