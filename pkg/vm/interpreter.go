package vm

import (
	"fmt"
	"math"
	"sort"

	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// executeMethod is the single entry point for running a method, whether
// reached via a top-level invocation, an invoke* opcode, or <clinit>
// driving. It dispatches to a registered native, rejects abstract methods
// (resolution should never hand one to here), or builds a frame and runs
// the bytecode loop.
func (v *VM) executeMethod(thread *Thread, class *classloader.Class, method *classfile.MethodInfo, args []runtime.Value) (runtime.Value, error) {
	if thread.Depth() >= maxFrameDepth {
		return runtime.Value{}, v.throwAsException(thread, class.Loader(), "java/lang/StackOverflowError", "")
	}

	name, err := class.File().Pool.Utf8At(method.NameIndex)
	if err != nil {
		return runtime.Value{}, err
	}
	descriptor, err := class.File().Pool.Utf8At(method.DescriptorIndex)
	if err != nil {
		return runtime.Value{}, err
	}

	if method.IsNative() {
		native, ok := v.Natives.Lookup(class.Name(), name, descriptor)
		if !ok {
			return runtime.Value{}, v.throwAsException(thread, class.Loader(), "java/lang/UnsatisfiedLinkError",
				fmt.Sprintf("%s.%s%s", class.Name(), name, descriptor))
		}
		result, err := native(v, thread, args)
		if err != nil {
			return runtime.Value{}, err
		}
		return result, nil
	}

	code := method.Code()
	if code == nil {
		return runtime.Value{}, newVMError("%s.%s%s has no Code attribute and is not native", class.Name(), name, descriptor)
	}

	frame, err := NewFrame(class, method, code, args)
	if err != nil {
		return runtime.Value{}, err
	}

	if method.AccessFlags&classfile.AccSynchronized != 0 {
		monitorObj, err := v.syncTarget(method, class, args)
		if err != nil {
			return runtime.Value{}, err
		}
		monitorObj.Lock(thread.ID)
		frame.PushMonitor(monitorObj)
	}

	thread.pushFrame(frame)
	defer func() {
		frame.ReleaseAllMonitors(thread.ID)
		thread.popFrame()
	}()

	return v.runFrame(thread, frame)
}

// syncTarget resolves the monitor object a synchronized method locks: the
// Class's mirror for a static method, or `this` (args[0]) for an instance
// method.
func (v *VM) syncTarget(method *classfile.MethodInfo, class *classloader.Class, args []runtime.Value) (*runtime.Object, error) {
	if method.IsStatic() {
		mirror := class.Mirror(func() runtime.Reference { return runtime.NewObject(class) })
		obj, _ := mirror.(*runtime.Object)
		return obj, nil
	}
	if len(args) == 0 || args[0].Ref == nil {
		return nil, newVMError("synchronized instance method called with no receiver")
	}
	obj, ok := args[0].Ref.(*runtime.Object)
	if !ok {
		return nil, newVMError("synchronized instance method receiver is not an Object")
	}
	return obj, nil
}

// runFrame is the fetch-decode-dispatch loop. A *JavaException bubbling
// out of an opcode is first offered to frame's own exception table; if no
// handler matches, it propagates to the caller by returning the error,
// exactly like the teacher's executeMethod loop, generalized to use
// instruction indices instead of re-scanning raw bytes per step.
func (v *VM) runFrame(thread *Thread, frame *Frame) (runtime.Value, error) {
	for {
		if frame.AtEnd() {
			return runtime.Value{}, newVMError("%s fell off the end of its bytecode", frame.Class.Name())
		}
		inst := frame.CurrentInstruction()
		result, done, err := v.step(thread, frame, inst)
		if err != nil {
			if jexc, ok := err.(*JavaException); ok {
				handled, herr := v.dispatchException(frame, jexc)
				if herr != nil {
					return runtime.Value{}, herr
				}
				if handled {
					continue
				}
			}
			return runtime.Value{}, err
		}
		if done {
			return result, nil
		}
	}
}

// dispatchException looks up a handler for exc at the frame's current
// program counter, clears the operand stack and pushes the exception
// object per section 2.10's sole-operand-on-entry rule, and jumps the
// frame to the handler. Returns handled=false if no entry matches, which
// tells runFrame to propagate the exception to the caller instead.
func (v *VM) dispatchException(frame *Frame, exc *JavaException) (bool, error) {
	pc := uint16(frame.CurrentInstruction().Offset)
	idx, found, err := v.findExceptionHandler(frame, pc, exc.Value)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	frame.sp = 0
	frame.Push(runtime.Ref(exc.Value))
	frame.pc = idx
	return true, nil
}

// step executes a single instruction. Returns (result, done, err): done
// is true only for a return-family opcode, at which point result is the
// method's return value (zero Value for void/areturn-of-null).
func (v *VM) step(thread *Thread, f *Frame, inst classfile.Instruction) (runtime.Value, bool, error) {
	switch inst.Opcode {
	case classfile.OpNop:
		f.Advance()

	case classfile.OpAconstNull:
		f.Push(runtime.Null())
		f.Advance()
	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2, classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		f.Push(runtime.Int(int32(inst.Opcode) - int32(classfile.OpIconst0)))
		f.Advance()
	case classfile.OpLconst0, classfile.OpLconst1:
		f.Push(runtime.Long(int64(inst.Opcode) - int64(classfile.OpLconst0)))
		f.Advance()
	case classfile.OpFconst0, classfile.OpFconst1, classfile.OpFconst2:
		f.Push(runtime.Float(float32(int(inst.Opcode) - int(classfile.OpFconst0))))
		f.Advance()
	case classfile.OpDconst0, classfile.OpDconst1:
		f.Push(runtime.Double(float64(int(inst.Opcode) - int(classfile.OpDconst0))))
		f.Advance()
	case classfile.OpBipush, classfile.OpSipush:
		f.Push(runtime.Int(inst.IntOperand))
		f.Advance()

	case classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W:
		val, err := v.executeLdc(thread, f, inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(val)
		f.Advance()

	case classfile.OpIload, classfile.OpFload, classfile.OpAload,
		classfile.OpIload0, classfile.OpIload1, classfile.OpIload2, classfile.OpIload3,
		classfile.OpFload0, classfile.OpFload1, classfile.OpFload2, classfile.OpFload3,
		classfile.OpAload0, classfile.OpAload1, classfile.OpAload2, classfile.OpAload3:
		f.Push(f.Locals[localSlot(inst)])
		f.Advance()
	case classfile.OpLload, classfile.OpDload,
		classfile.OpLload0, classfile.OpLload1, classfile.OpLload2, classfile.OpLload3,
		classfile.OpDload0, classfile.OpDload1, classfile.OpDload2, classfile.OpDload3:
		f.Push(f.Locals[localSlot(inst)])
		f.Advance()

	case classfile.OpIstore, classfile.OpFstore, classfile.OpAstore, classfile.OpLstore, classfile.OpDstore,
		classfile.OpIstore0, classfile.OpIstore1, classfile.OpIstore2, classfile.OpIstore3,
		classfile.OpFstore0, classfile.OpFstore1, classfile.OpFstore2, classfile.OpFstore3,
		classfile.OpAstore0, classfile.OpAstore1, classfile.OpAstore2, classfile.OpAstore3,
		classfile.OpLstore0, classfile.OpLstore1, classfile.OpLstore2, classfile.OpLstore3,
		classfile.OpDstore0, classfile.OpDstore1, classfile.OpDstore2, classfile.OpDstore3:
		f.Locals[localSlot(inst)] = f.Pop()
		f.Advance()

	case classfile.OpIaload, classfile.OpLaload, classfile.OpFaload, classfile.OpDaload, classfile.OpAaload,
		classfile.OpBaload, classfile.OpCaload, classfile.OpSaload:
		val, err := v.executeArrayLoad(thread, f)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(val)
		f.Advance()

	case classfile.OpIastore, classfile.OpLastore, classfile.OpFastore, classfile.OpDastore, classfile.OpAastore,
		classfile.OpBastore, classfile.OpCastore, classfile.OpSastore:
		if err := v.executeArrayStore(thread, f); err != nil {
			return runtime.Value{}, false, err
		}
		f.Advance()

	case classfile.OpPop:
		f.Pop()
		f.Advance()
	case classfile.OpPop2:
		top := f.Pop()
		if !top.IsWide() {
			f.Pop()
		}
		f.Advance()
	case classfile.OpDup:
		v := f.Peek()
		f.Push(v)
		f.Advance()
	case classfile.OpDupX1:
		a := f.Pop()
		b := f.Pop()
		f.Push(a)
		f.Push(b)
		f.Push(a)
		f.Advance()
	case classfile.OpDupX2:
		a := f.Pop()
		b := f.Pop()
		if b.IsWide() {
			f.Push(a)
			f.Push(b)
			f.Push(a)
		} else {
			c := f.Pop()
			f.Push(a)
			f.Push(c)
			f.Push(b)
			f.Push(a)
		}
		f.Advance()
	case classfile.OpDup2:
		a := f.Pop()
		if a.IsWide() {
			f.Push(a)
			f.Push(a)
		} else {
			b := f.Pop()
			f.Push(b)
			f.Push(a)
			f.Push(b)
			f.Push(a)
		}
		f.Advance()
	case classfile.OpDup2X1:
		a := f.Pop()
		if a.IsWide() {
			b := f.Pop()
			f.Push(a)
			f.Push(b)
			f.Push(a)
		} else {
			b := f.Pop()
			c := f.Pop()
			f.Push(b)
			f.Push(a)
			f.Push(c)
			f.Push(b)
			f.Push(a)
		}
		f.Advance()
	case classfile.OpDup2X2:
		a := f.Pop()
		b := f.Pop()
		if a.IsWide() && b.IsWide() {
			f.Push(a)
			f.Push(b)
			f.Push(a)
		} else if a.IsWide() {
			c := f.Pop()
			f.Push(a)
			f.Push(c)
			f.Push(b)
			f.Push(a)
		} else if b.IsWide() {
			f.Push(b)
			f.Push(a)
			f.Push(b)
		} else {
			c := f.Pop()
			if c.IsWide() {
				// Form 3: two category-1 words atop a category-2 word.
				f.Push(b)
				f.Push(a)
				f.Push(c)
				f.Push(b)
				f.Push(a)
			} else {
				d := f.Pop()
				f.Push(b)
				f.Push(a)
				f.Push(d)
				f.Push(c)
				f.Push(b)
				f.Push(a)
			}
		}
		f.Advance()
	case classfile.OpSwap:
		a := f.Pop()
		b := f.Pop()
		f.Push(a)
		f.Push(b)
		f.Advance()

	case classfile.OpIadd:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a + b))
		f.Advance()
	case classfile.OpLadd:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a + b))
		f.Advance()
	case classfile.OpFadd:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Float(a + b))
		f.Advance()
	case classfile.OpDadd:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Double(a + b))
		f.Advance()
	case classfile.OpIsub:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a - b))
		f.Advance()
	case classfile.OpLsub:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a - b))
		f.Advance()
	case classfile.OpFsub:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Float(a - b))
		f.Advance()
	case classfile.OpDsub:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Double(a - b))
		f.Advance()
	case classfile.OpImul:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a * b))
		f.Advance()
	case classfile.OpLmul:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a * b))
		f.Advance()
	case classfile.OpFmul:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Float(a * b))
		f.Advance()
	case classfile.OpDmul:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Double(a * b))
		f.Advance()
	case classfile.OpIdiv:
		b := f.PopInt()
		a := f.PopInt()
		if b == 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(runtime.Int(a / b))
		f.Advance()
	case classfile.OpLdiv:
		b := f.PopLong()
		a := f.PopLong()
		if b == 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(runtime.Long(a / b))
		f.Advance()
	case classfile.OpFdiv:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Float(a / b))
		f.Advance()
	case classfile.OpDdiv:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Double(a / b))
		f.Advance()
	case classfile.OpIrem:
		b := f.PopInt()
		a := f.PopInt()
		if b == 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(runtime.Int(a % b))
		f.Advance()
	case classfile.OpLrem:
		b := f.PopLong()
		a := f.PopLong()
		if b == 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(runtime.Long(a % b))
		f.Advance()
	case classfile.OpFrem:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Float(float32(math.Mod(float64(a), float64(b)))))
		f.Advance()
	case classfile.OpDrem:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Double(math.Mod(a, b)))
		f.Advance()
	case classfile.OpIneg:
		f.Push(runtime.Int(-f.PopInt()))
		f.Advance()
	case classfile.OpLneg:
		f.Push(runtime.Long(-f.PopLong()))
		f.Advance()
	case classfile.OpFneg:
		f.Push(runtime.Float(-f.PopFloat()))
		f.Advance()
	case classfile.OpDneg:
		f.Push(runtime.Double(-f.PopDouble()))
		f.Advance()

	case classfile.OpIshl:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a << (uint32(b) & 0x1F)))
		f.Advance()
	case classfile.OpLshl:
		b := f.PopInt()
		a := f.PopLong()
		f.Push(runtime.Long(a << (uint64(b) & 0x3F)))
		f.Advance()
	case classfile.OpIshr:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a >> (uint32(b) & 0x1F)))
		f.Advance()
	case classfile.OpLshr:
		b := f.PopInt()
		a := f.PopLong()
		f.Push(runtime.Long(a >> (uint64(b) & 0x3F)))
		f.Advance()
	case classfile.OpIushr:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(int32(uint32(a) >> (uint32(b) & 0x1F))))
		f.Advance()
	case classfile.OpLushr:
		b := f.PopInt()
		a := f.PopLong()
		f.Push(runtime.Long(int64(uint64(a) >> (uint64(b) & 0x3F))))
		f.Advance()
	case classfile.OpIand:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a & b))
		f.Advance()
	case classfile.OpLand:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a & b))
		f.Advance()
	case classfile.OpIor:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a | b))
		f.Advance()
	case classfile.OpLor:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a | b))
		f.Advance()
	case classfile.OpIxor:
		b := f.PopInt()
		a := f.PopInt()
		f.Push(runtime.Int(a ^ b))
		f.Advance()
	case classfile.OpLxor:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Long(a ^ b))
		f.Advance()

	case classfile.OpIinc:
		slot := inst.Index
		f.Locals[slot] = runtime.Int(f.Locals[slot].I + inst.IntOperand)
		f.Advance()

	case classfile.OpI2l:
		f.Push(runtime.Long(int64(f.PopInt())))
		f.Advance()
	case classfile.OpI2f:
		f.Push(runtime.Float(float32(f.PopInt())))
		f.Advance()
	case classfile.OpI2d:
		f.Push(runtime.Double(float64(f.PopInt())))
		f.Advance()
	case classfile.OpL2i:
		f.Push(runtime.Int(int32(f.PopLong())))
		f.Advance()
	case classfile.OpL2f:
		f.Push(runtime.Float(float32(f.PopLong())))
		f.Advance()
	case classfile.OpL2d:
		f.Push(runtime.Double(float64(f.PopLong())))
		f.Advance()
	case classfile.OpF2i:
		f.Push(runtime.Int(float32ToInt32(f.PopFloat())))
		f.Advance()
	case classfile.OpF2l:
		f.Push(runtime.Long(float32ToInt64(f.PopFloat())))
		f.Advance()
	case classfile.OpF2d:
		f.Push(runtime.Double(float64(f.PopFloat())))
		f.Advance()
	case classfile.OpD2i:
		f.Push(runtime.Int(float64ToInt32(f.PopDouble())))
		f.Advance()
	case classfile.OpD2l:
		f.Push(runtime.Long(float64ToInt64(f.PopDouble())))
		f.Advance()
	case classfile.OpD2f:
		f.Push(runtime.Float(float32(f.PopDouble())))
		f.Advance()
	case classfile.OpI2b:
		f.Push(runtime.Int(int32(int8(f.PopInt()))))
		f.Advance()
	case classfile.OpI2c:
		f.Push(runtime.Int(int32(uint16(f.PopInt()))))
		f.Advance()
	case classfile.OpI2s:
		f.Push(runtime.Int(int32(int16(f.PopInt()))))
		f.Advance()

	case classfile.OpLcmp:
		b := f.PopLong()
		a := f.PopLong()
		f.Push(runtime.Int(cmp64(a, b)))
		f.Advance()
	case classfile.OpFcmpl:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Int(fcmp(float64(a), float64(b), -1)))
		f.Advance()
	case classfile.OpFcmpg:
		b := f.PopFloat()
		a := f.PopFloat()
		f.Push(runtime.Int(fcmp(float64(a), float64(b), 1)))
		f.Advance()
	case classfile.OpDcmpl:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Int(fcmp(a, b, -1)))
		f.Advance()
	case classfile.OpDcmpg:
		b := f.PopDouble()
		a := f.PopDouble()
		f.Push(runtime.Int(fcmp(a, b, 1)))
		f.Advance()

	case classfile.OpIfeq, classfile.OpIfne, classfile.OpIflt, classfile.OpIfge, classfile.OpIfgt, classfile.OpIfle:
		a := f.PopInt()
		if compareUnary(inst.Opcode, a) {
			return runtime.Value{}, false, f.JumpToOffset(inst.Target)
		}
		f.Advance()
	case classfile.OpIfIcmpeq, classfile.OpIfIcmpne, classfile.OpIfIcmplt, classfile.OpIfIcmpge, classfile.OpIfIcmpgt, classfile.OpIfIcmple:
		b := f.PopInt()
		a := f.PopInt()
		if compareBinaryInt(inst.Opcode, a, b) {
			return runtime.Value{}, false, f.JumpToOffset(inst.Target)
		}
		f.Advance()
	case classfile.OpIfAcmpeq, classfile.OpIfAcmpne:
		b := f.PopRef()
		a := f.PopRef()
		eq := a == b
		if inst.Opcode == classfile.OpIfAcmpeq && eq || inst.Opcode == classfile.OpIfAcmpne && !eq {
			return runtime.Value{}, false, f.JumpToOffset(inst.Target)
		}
		f.Advance()
	case classfile.OpIfnull:
		if f.PopRef() == nil {
			return runtime.Value{}, false, f.JumpToOffset(inst.Target)
		}
		f.Advance()
	case classfile.OpIfnonnull:
		if f.PopRef() != nil {
			return runtime.Value{}, false, f.JumpToOffset(inst.Target)
		}
		f.Advance()
	case classfile.OpGoto, classfile.OpGotoW:
		return runtime.Value{}, false, f.JumpToOffset(inst.Target)
	case classfile.OpJsr, classfile.OpJsrW, classfile.OpRet:
		// jsr/ret were already obsolete by Java 7; Decode still disassembles
		// them for round-trip fidelity, but no live class file emits them, so
		// execution traps rather than implementing the legacy subroutine
		// mechanism.
		return runtime.Value{}, false, newVMErrorKind(ErrMalformedInstruction, "jsr/ret subroutines are not supported at opcode 0x%02X", inst.Opcode)

	case classfile.OpTableswitch:
		return runtime.Value{}, false, v.executeTableswitch(f, inst)
	case classfile.OpLookupswitch:
		return runtime.Value{}, false, v.executeLookupswitch(f, inst)

	case classfile.OpIreturn, classfile.OpFreturn, classfile.OpAreturn:
		return f.Pop(), true, nil
	case classfile.OpLreturn, classfile.OpDreturn:
		return f.Pop(), true, nil
	case classfile.OpReturn:
		return runtime.Value{}, true, nil

	case classfile.OpGetstatic:
		val, err := v.executeGetstatic(thread, f, inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(val)
		f.Advance()
	case classfile.OpPutstatic:
		if err := v.executePutstatic(thread, f, inst.Index); err != nil {
			return runtime.Value{}, false, err
		}
		f.Advance()
	case classfile.OpGetfield:
		val, err := v.executeGetfield(thread, f, inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(val)
		f.Advance()
	case classfile.OpPutfield:
		if err := v.executePutfield(thread, f, inst.Index); err != nil {
			return runtime.Value{}, false, err
		}
		f.Advance()

	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokestatic, classfile.OpInvokeinterface:
		result, err := v.executeInvoke(thread, f, inst)
		if err != nil {
			return runtime.Value{}, false, err
		}
		if result != nil {
			f.Push(*result)
		}
		f.Advance()
	case classfile.OpInvokedynamic:
		result, err := v.executeInvokedynamic(thread, f, inst)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(result)
		f.Advance()

	case classfile.OpNew:
		obj, err := v.executeNew(thread, f, inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(runtime.Ref(obj))
		f.Advance()
	case classfile.OpNewarray:
		length := f.PopInt()
		if length < 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NegativeArraySizeException", fmt.Sprint(length))
		}
		f.Push(runtime.Ref(runtime.NewPrimitiveArray(newarrayKind(inst.IntOperand), int(length))))
		f.Advance()
	case classfile.OpAnewarray:
		length := f.PopInt()
		if length < 0 {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NegativeArraySizeException", fmt.Sprint(length))
		}
		componentName, err := f.Class.File().Pool.ClassNameAt(inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(runtime.Ref(runtime.NewRefArray("L"+componentName+";", int(length))))
		f.Advance()
	case classfile.OpArraylength:
		arr, ok := f.PopRef().(*runtime.Array)
		if !ok {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
		}
		f.Push(runtime.Int(int32(arr.Length())))
		f.Advance()
	case classfile.OpMultianewarray:
		result, err := v.executeMultianewarray(thread, f, inst)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(result)
		f.Advance()

	case classfile.OpAthrow:
		ref := f.PopRef()
		obj, ok := ref.(*runtime.Object)
		if !ok || obj == nil {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
		}
		return runtime.Value{}, false, Throw(obj)

	case classfile.OpCheckcast:
		if err := v.executeCheckcast(thread, f, inst.Index); err != nil {
			return runtime.Value{}, false, err
		}
		f.Advance()
	case classfile.OpInstanceof:
		result, err := v.executeInstanceof(thread, f, inst.Index)
		if err != nil {
			return runtime.Value{}, false, err
		}
		f.Push(runtime.Bool(result))
		f.Advance()

	case classfile.OpMonitorenter:
		obj, ok := f.PopRef().(*runtime.Object)
		if !ok || obj == nil {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
		}
		obj.Lock(thread.ID)
		f.Advance()
	case classfile.OpMonitorexit:
		obj, ok := f.PopRef().(*runtime.Object)
		if !ok || obj == nil {
			return runtime.Value{}, false, v.throwAsException(thread, f.Class.Loader(), "java/lang/NullPointerException", "")
		}
		obj.Unlock(thread.ID)
		f.Advance()

	default:
		return runtime.Value{}, false, newVMError("unimplemented opcode 0x%02X", inst.Opcode)
	}
	return runtime.Value{}, false, nil
}

func (v *VM) executeTableswitch(f *Frame, inst classfile.Instruction) error {
	index := f.PopInt()
	if index < inst.Low || index > inst.High {
		return f.JumpToOffset(inst.Default)
	}
	return f.JumpToOffset(inst.Targets[index-inst.Low])
}

// executeLookupswitch binary-searches the match keys, which section
// 6.5.lookupswitch guarantees arrive sorted.
func (v *VM) executeLookupswitch(f *Frame, inst classfile.Instruction) error {
	index := f.PopInt()
	i := sort.Search(len(inst.Keys), func(i int) bool { return inst.Keys[i] >= index })
	if i < len(inst.Keys) && inst.Keys[i] == index {
		return f.JumpToOffset(inst.Targets[i])
	}
	return f.JumpToOffset(inst.Default)
}

// throwAsException builds and wraps a synthesized exception (for VM-raised
// conditions like division by zero or a null dereference) as a
// *JavaException ready to flow through the same handler search as a
// guest-thrown one.
func (v *VM) throwAsException(thread *Thread, loader *classloader.Loader, className, message string) error {
	obj, err := v.newThrowable(loader, className, message)
	if err != nil {
		return err
	}
	return Throw(obj)
}

// ThrowNew is throwAsException's exported counterpart, for natives outside
// this package that need to raise a Java exception (e.g. Unsafe bounds
// checks, Thread natives rejecting a negative sleep duration).
func (v *VM) ThrowNew(loader *classloader.Loader, className, message string) error {
	obj, err := v.newThrowable(loader, className, message)
	if err != nil {
		return err
	}
	return Throw(obj)
}

func localSlot(inst classfile.Instruction) uint16 {
	switch inst.Opcode {
	case classfile.OpIload, classfile.OpLload, classfile.OpFload, classfile.OpDload, classfile.OpAload,
		classfile.OpIstore, classfile.OpLstore, classfile.OpFstore, classfile.OpDstore, classfile.OpAstore:
		return inst.Index
	default:
		// *_0.._3 forms: slot is encoded in the opcode itself.
		return shortFormSlot(inst.Opcode)
	}
}

// shortFormSlot decodes the implicit local index of an *load_N/*store_N
// opcode from its position relative to the family's _0 opcode.
func shortFormSlot(op uint8) uint16 {
	switch {
	case op >= classfile.OpIload0 && op <= classfile.OpIload3:
		return uint16(op - classfile.OpIload0)
	case op >= classfile.OpLload0 && op <= classfile.OpLload3:
		return uint16(op - classfile.OpLload0)
	case op >= classfile.OpFload0 && op <= classfile.OpFload3:
		return uint16(op - classfile.OpFload0)
	case op >= classfile.OpDload0 && op <= classfile.OpDload3:
		return uint16(op - classfile.OpDload0)
	case op >= classfile.OpAload0 && op <= classfile.OpAload3:
		return uint16(op - classfile.OpAload0)
	case op >= classfile.OpIstore0 && op <= classfile.OpIstore3:
		return uint16(op - classfile.OpIstore0)
	case op >= classfile.OpLstore0 && op <= classfile.OpLstore3:
		return uint16(op - classfile.OpLstore0)
	case op >= classfile.OpFstore0 && op <= classfile.OpFstore3:
		return uint16(op - classfile.OpFstore0)
	case op >= classfile.OpDstore0 && op <= classfile.OpDstore3:
		return uint16(op - classfile.OpDstore0)
	case op >= classfile.OpAstore0 && op <= classfile.OpAstore3:
		return uint16(op - classfile.OpAstore0)
	default:
		return 0
	}
}

func compareUnary(op uint8, a int32) bool {
	switch op {
	case classfile.OpIfeq:
		return a == 0
	case classfile.OpIfne:
		return a != 0
	case classfile.OpIflt:
		return a < 0
	case classfile.OpIfge:
		return a >= 0
	case classfile.OpIfgt:
		return a > 0
	case classfile.OpIfle:
		return a <= 0
	}
	return false
}

func compareBinaryInt(op uint8, a, b int32) bool {
	switch op {
	case classfile.OpIfIcmpeq:
		return a == b
	case classfile.OpIfIcmpne:
		return a != b
	case classfile.OpIfIcmplt:
		return a < b
	case classfile.OpIfIcmpge:
		return a >= b
	case classfile.OpIfIcmpgt:
		return a > b
	case classfile.OpIfIcmple:
		return a <= b
	}
	return false
}

func cmp64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// fcmp implements fcmpl/fcmpg and dcmpl/dcmpg: nanResult is the value
// produced when either operand is NaN (-1 for the *l forms, 1 for *g),
// per section 6.5.fcmp<op>.
func fcmp(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func newarrayKind(code int32) runtime.ElementKind {
	switch code {
	case classfile.ArrayTypeBoolean, classfile.ArrayTypeByte:
		return runtime.ElemByte
	case classfile.ArrayTypeChar:
		return runtime.ElemChar
	case classfile.ArrayTypeFloat:
		return runtime.ElemFloat
	case classfile.ArrayTypeDouble:
		return runtime.ElemDouble
	case classfile.ArrayTypeShort:
		return runtime.ElemShort
	case classfile.ArrayTypeInt:
		return runtime.ElemInt
	case classfile.ArrayTypeLong:
		return runtime.ElemLong
	default:
		return runtime.ElemInt
	}
}

// float32ToInt32/float32ToInt64/float64ToInt32/float64ToInt64 implement
// the JLS narrowing conversion rules for f2i/f2l/d2i/d2l: NaN becomes 0,
// out-of-range values saturate to the target type's min/max rather than
// wrapping, unlike Go's native float-to-int conversion.
func float32ToInt32(f float32) int32 {
	return float64ToInt32(float64(f))
}

func float32ToInt64(f float32) int64 {
	return float64ToInt64(float64(f))
}

func float64ToInt32(d float64) int32 {
	if math.IsNaN(d) {
		return 0
	}
	if d >= math.MaxInt32 {
		return math.MaxInt32
	}
	if d <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(d)
}

func float64ToInt64(d float64) int64 {
	if math.IsNaN(d) {
		return 0
	}
	if d >= math.MaxInt64 {
		return math.MaxInt64
	}
	if d <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(d)
}
