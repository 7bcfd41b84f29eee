package vm

import (
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// Frame is one activation record: the local-variable array, operand
// stack, and enough of the defining method to drive the interpreter loop
// and to report a stack trace element. Unlike the teacher's Frame (which
// re-read bytecode bytes on every step), this Frame decodes its method's
// instructions once at creation via classfile.Decode and walks the
// resulting []Instruction by index. Branch targets stay absolute byte
// offsets; each jump maps its target to an instruction index through the
// offset index built once here.
type Frame struct {
	Class   *classloader.Class
	Method  *classfile.MethodInfo
	Code    *classfile.CodeAttribute
	Instrs  []classfile.Instruction
	offsets map[int32]int // byte offset -> instruction index

	Locals []runtime.Value
	Stack  []runtime.Value
	sp     int
	pc     int // index into Instrs, not a byte offset

	// monitors lists each monitor entry this frame itself made on its
	// thread's behalf (for synchronized methods
	// and monitorenter/exit pairing), so abrupt completion (athrow,
	// return past an unbalanced monitor) can release them all.
	monitors []*runtime.Object
}

// NewFrame decodes method's Code attribute and builds a ready-to-run
// frame. args are copied into the first local slots (this, then
// parameters, matching invoke's calling convention); the remaining locals
// default-zero per their declared descriptor widths via the interpreter's
// local slot accounting.
func NewFrame(class *classloader.Class, method *classfile.MethodInfo, code *classfile.CodeAttribute, args []runtime.Value) (*Frame, error) {
	instrs, err := classfile.Decode(code.Code)
	if err != nil {
		return nil, err
	}
	f := &Frame{
		Class:   class,
		Method:  method,
		Code:    code,
		Instrs:  instrs,
		offsets: classfile.OffsetIndex(instrs),
		Locals:  make([]runtime.Value, code.MaxLocals),
		Stack:   make([]runtime.Value, code.MaxStack),
	}
	copy(f.Locals, args)
	return f, nil
}

// Push/Pop manipulate the operand stack. The interpreter is trusted code:
// these do not bounds-check against MaxStack, matching how a verified
// method is assumed never to overflow it (unverified input is rejected
// earlier, at class preparation, which is out of scope here the same way
// it is in the teacher).
func (f *Frame) Push(v runtime.Value) { f.Stack[f.sp] = v; f.sp++ }
func (f *Frame) Pop() runtime.Value   { f.sp--; return f.Stack[f.sp] }
func (f *Frame) Peek() runtime.Value  { return f.Stack[f.sp-1] }

func (f *Frame) PopInt() int32       { return f.Pop().I }
func (f *Frame) PopLong() int64      { return f.Pop().L }
func (f *Frame) PopFloat() float32   { return f.Pop().F }
func (f *Frame) PopDouble() float64  { return f.Pop().D }
func (f *Frame) PopRef() runtime.Reference { return f.Pop().Ref }

// CurrentInstruction returns the instruction at the program counter.
func (f *Frame) CurrentInstruction() classfile.Instruction { return f.Instrs[f.pc] }

// Advance moves the program counter to the next sequential instruction.
func (f *Frame) Advance() { f.pc++ }

// AtEnd reports whether the program counter has run off the end of the
// method — a well-formed method never reaches this via fall-through (every
// path ends in a return or athrow), so this is a host-level bug guard, not
// a path the interpreter loop should normally hit.
func (f *Frame) AtEnd() bool { return f.pc >= len(f.Instrs) }

// JumpToOffset moves the program counter to the instruction whose byte
// offset in the original Code array is offset, translating the absolute
// branch target classfile.Decode already resolved into an instruction
// index via the frame's offset index. Exception handlers cross the same
// boundary through instructionIndexForOffset.
func (f *Frame) JumpToOffset(offset int32) error {
	idx, ok := f.offsets[offset]
	if !ok {
		return newVMError("branch target %d is not an instruction boundary", offset)
	}
	f.pc = idx
	return nil
}

// instructionIndexForOffset maps a byte offset from the Code attribute's
// exception table (a handler_pc) to its instruction index — used by
// findExceptionHandler once a candidate exception table entry has matched.
func (f *Frame) instructionIndexForOffset(offset uint16) (int, bool) {
	idx, ok := f.offsets[int32(offset)]
	return idx, ok
}

// PushMonitor/ReleaseAllMonitors track monitor ownership acquired by this frame,
// for synchronized methods and for cleanup on abrupt completion.
func (f *Frame) PushMonitor(o *runtime.Object) { f.monitors = append(f.monitors, o) }

func (f *Frame) ReleaseAllMonitors(threadID int64) {
	for i := len(f.monitors) - 1; i >= 0; i-- {
		f.monitors[i].Unlock(threadID)
	}
	f.monitors = nil
}
