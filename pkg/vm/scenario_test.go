package vm

import (
	"archive/zip"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireo-vm/vireo/internal/trace"
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/classpath"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// writeClass writes a minimal class extending superName ("" for
// java/lang/Object, which has none) under dir, following the binary name's
// package-as-directory layout.
func writeClass(t *testing.T, dir, binaryName, superName string) {
	t.Helper()
	pool := classfile.NewPool()
	this := pool.AddClass(binaryName)
	var super uint16
	if superName != "" {
		super = pool.AddClass(superName)
	}
	cf := &classfile.ClassFile{
		MajorVersion: 65,
		Pool:         pool,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    this,
		SuperClass:   super,
	}
	writeClassBytes(t, dir, binaryName, classfile.Write(cf))
}

func writeClassBytes(t *testing.T, dir, binaryName string, data []byte) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(binaryName)+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

// buildMethod assembles a MethodInfo whose name/descriptor are interned
// into pool (the same pool the enclosing class file uses) and whose body
// is code wrapped in a bare Code attribute. The "Code" attribute name is
// interned too, since classfile.Write emits the pool before it resolves
// attribute names against it.
func buildMethod(pool *classfile.Pool, name, descriptor string, accessFlags uint16, maxStack, maxLocals uint16, code []byte) *classfile.MethodInfo {
	pool.AddUtf8("Code")
	return &classfile.MethodInfo{
		AccessFlags:     accessFlags,
		NameIndex:       pool.AddUtf8(name),
		DescriptorIndex: pool.AddUtf8(descriptor),
		Attributes: []classfile.Attribute{
			&classfile.CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: code},
		},
	}
}

// newScenarioVM builds a two-loader VM: bootstrap holds a minimal
// java.lang.Object/Throwable/Exception/RuntimeException/ArithmeticException
// hierarchy (enough for the interpreter's built-in exception synthesis to
// resolve), and app holds a single class "Calc" carrying methods, built
// against pool (the same pool Calc's own constant-pool entries share).
// No native registry is wired since none of these scenarios touch a
// native method.
func newScenarioVM(t *testing.T, pool *classfile.Pool, methods ...*classfile.MethodInfo) (*VM, *classloader.Class, *Thread) {
	t.Helper()
	bootDir := t.TempDir()
	appDir := t.TempDir()

	writeClass(t, bootDir, "java/lang/Object", "")
	writeClass(t, bootDir, "java/lang/String", "java/lang/Object")
	writeClass(t, bootDir, "java/lang/Throwable", "java/lang/Object")
	writeClass(t, bootDir, "java/lang/Exception", "java/lang/Throwable")
	writeClass(t, bootDir, "java/lang/RuntimeException", "java/lang/Exception")
	writeClass(t, bootDir, "java/lang/ArithmeticException", "java/lang/RuntimeException")

	this := pool.AddClass("Calc")
	super := pool.AddClass("java/lang/Object")
	cf := &classfile.ClassFile{
		MajorVersion: 65,
		Pool:         pool,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    this,
		SuperClass:   super,
		Methods:      methods,
	}
	writeClassBytes(t, appDir, "Calc", classfile.Write(cf))

	log := trace.Noop()
	bootCP := classpath.New(&classpath.DirEntry{Root: bootDir})
	appCP := classpath.New(&classpath.DirEntry{Root: appDir})
	boot := classloader.NewLoader("bootstrap", nil, bootCP, log)
	app := classloader.NewLoader("app", boot, appCP, log)

	v := &VM{
		Boot:          boot,
		App:           app,
		log:           log,
		threads:       make(map[int64]*Thread),
		interned:      make(map[string]*runtime.Object),
		mirrorThreads: make(map[*runtime.Object]*Thread),
	}
	thread := NewThread(v, "main")

	calc, err := app.LoadClass("Calc")
	require.NoError(t, err)
	return v, calc, thread
}

// TestArithmeticAdd is scenario S2: static int add(int,int){ return a+b; }
// compiled as iload_0 iload_1 iadd ireturn, invoked with (40, 2).
func TestArithmeticAdd(t *testing.T) {
	pool := classfile.NewPool()
	code := []byte{classfile.OpIload0, classfile.OpIload1, classfile.OpIadd, classfile.OpIreturn}
	add := buildMethod(pool, "add", "(II)I", classfile.AccPublic|classfile.AccStatic, 2, 2, code)

	v, calc, thread := newScenarioVM(t, pool, add)
	result, err := v.Invoke(thread, calc, "add", "(II)I", []runtime.Value{runtime.Int(40), runtime.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.I)
}

// TestBranchAbs is scenario S3: static int abs(int n){ if (n<0) return -n;
// return n; }, verifying both the negative and non-negative path through
// ifge's branch, and that the branch actually lands where intended.
func TestBranchAbs(t *testing.T) {
	pool := classfile.NewPool()
	// 0: iload_0
	// 1: ifge -> 7   (offset +6 from the ifge instruction itself)
	// 4: iload_0
	// 5: ineg
	// 6: ireturn
	// 7: iload_0
	// 8: ireturn
	code := []byte{
		classfile.OpIload0,
		classfile.OpIfge, 0x00, 0x06,
		classfile.OpIload0,
		classfile.OpIneg,
		classfile.OpIreturn,
		classfile.OpIload0,
		classfile.OpIreturn,
	}
	abs := buildMethod(pool, "abs", "(I)I", classfile.AccPublic|classfile.AccStatic, 1, 1, code)

	v, calc, thread := newScenarioVM(t, pool, abs)
	result, err := v.Invoke(thread, calc, "abs", "(I)I", []runtime.Value{runtime.Int(-7)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), result.I)

	result, err = v.Invoke(thread, calc, "abs", "(I)I", []runtime.Value{runtime.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), result.I)
}

// TestDivByZeroThrowsArithmeticException is scenario S4: static int
// div(int,int){ return a/b; } invoked with (1, 0) must surface a Java
// ArithmeticException with message "/ by zero", not a host-side error.
func TestDivByZeroThrowsArithmeticException(t *testing.T) {
	pool := classfile.NewPool()
	code := []byte{classfile.OpIload0, classfile.OpIload1, classfile.OpIdiv, classfile.OpIreturn}
	div := buildMethod(pool, "div", "(II)I", classfile.AccPublic|classfile.AccStatic, 2, 2, code)

	v, calc, thread := newScenarioVM(t, pool, div)
	_, err := v.Invoke(thread, calc, "div", "(II)I", []runtime.Value{runtime.Int(1), runtime.Int(0)})
	require.Error(t, err)

	jexc, ok := err.(*JavaException)
	require.True(t, ok, "division by zero must surface as a guest-observable JavaException, not a host error: %v", err)
	assert.Equal(t, "java/lang/ArithmeticException", jexc.Value.Class.Name())
	msg, ok := jexc.Value.GetField("message")
	require.True(t, ok)
	str, ok := GoString(msg.Ref.(*runtime.Object))
	require.True(t, ok)
	assert.Equal(t, "/ by zero", str)
}

// TestIdivMinValueByNegOne covers the MIN_VALUE/-1 overflow edge case:
// the JVM specifies this returns MIN_VALUE rather than trapping.
func TestIdivMinValueByNegOne(t *testing.T) {
	pool := classfile.NewPool()
	code := []byte{classfile.OpIload0, classfile.OpIload1, classfile.OpIdiv, classfile.OpIreturn}
	div := buildMethod(pool, "div", "(II)I", classfile.AccPublic|classfile.AccStatic, 2, 2, code)

	v, calc, thread := newScenarioVM(t, pool, div)
	result, err := v.Invoke(thread, calc, "div", "(II)I", []runtime.Value{runtime.Int(-2147483648), runtime.Int(-1)})
	require.NoError(t, err)
	assert.Equal(t, int32(-2147483648), result.I)
}

// TestFcmpNaN pins the NaN-ordering split between the l and g compare
// forms: fcmpl yields -1 for an unordered pair, fcmpg yields +1.
func TestFcmpNaN(t *testing.T) {
	pool := classfile.NewPool()
	cmpl := buildMethod(pool, "cmpl", "(FF)I", classfile.AccPublic|classfile.AccStatic, 2, 2,
		[]byte{classfile.OpFload0, classfile.OpFload1, classfile.OpFcmpl, classfile.OpIreturn})
	cmpg := buildMethod(pool, "cmpg", "(FF)I", classfile.AccPublic|classfile.AccStatic, 2, 2,
		[]byte{classfile.OpFload0, classfile.OpFload1, classfile.OpFcmpg, classfile.OpIreturn})

	v, calc, thread := newScenarioVM(t, pool, cmpl, cmpg)
	nan := float32(math.NaN())

	result, err := v.Invoke(thread, calc, "cmpl", "(FF)I", []runtime.Value{runtime.Float(nan), runtime.Float(1)})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), result.I)

	result, err = v.Invoke(thread, calc, "cmpg", "(FF)I", []runtime.Value{runtime.Float(nan), runtime.Float(1)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I)

	result, err = v.Invoke(thread, calc, "cmpl", "(FF)I", []runtime.Value{runtime.Float(2), runtime.Float(1)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I, "ordered operands compare identically in both forms")
}

// TestShiftCountMasking: the JVM masks int shift counts to 5 bits, so
// 1 << 33 is 1 << 1.
func TestShiftCountMasking(t *testing.T) {
	pool := classfile.NewPool()
	shl := buildMethod(pool, "shl", "(II)I", classfile.AccPublic|classfile.AccStatic, 2, 2,
		[]byte{classfile.OpIload0, classfile.OpIload1, classfile.OpIshl, classfile.OpIreturn})

	v, calc, thread := newScenarioVM(t, pool, shl)
	result, err := v.Invoke(thread, calc, "shl", "(II)I", []runtime.Value{runtime.Int(1), runtime.Int(33)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), result.I)
}

// TestF2iSaturation: float-to-int conversion maps NaN to 0 and saturates
// out-of-range magnitudes instead of wrapping.
func TestF2iSaturation(t *testing.T) {
	pool := classfile.NewPool()
	conv := buildMethod(pool, "conv", "(F)I", classfile.AccPublic|classfile.AccStatic, 1, 1,
		[]byte{classfile.OpFload0, classfile.OpF2i, classfile.OpIreturn})

	v, calc, thread := newScenarioVM(t, pool, conv)
	cases := []struct {
		in   float32
		want int32
	}{
		{float32(math.NaN()), 0},
		{1e10, math.MaxInt32},
		{-1e10, math.MinInt32},
		{-7.9, -7},
	}
	for _, tc := range cases {
		result, err := v.Invoke(thread, calc, "conv", "(F)I", []runtime.Value{runtime.Float(tc.in)})
		require.NoError(t, err)
		assert.Equal(t, tc.want, result.I, "f2i(%v)", tc.in)
	}
}

// TestDup2X2Forms covers the two stack shapes dup2_x2 distinguishes at
// the top of the operand stack: Form 1 duplicates two category-1 words
// past two more category-1 words, Form 3 duplicates them past a single
// category-2 word.
func TestDup2X2Forms(t *testing.T) {
	pool := classfile.NewPool()

	// Form 1: [1 2 3 4] -> [3 4 1 2 3 4]; five pops leave the buried
	// duplicate of 3 on top.
	form1 := buildMethod(pool, "form1", "()I", classfile.AccPublic|classfile.AccStatic, 8, 0, []byte{
		classfile.OpIconst1, classfile.OpIconst2, classfile.OpIconst3, classfile.OpIconst4,
		classfile.OpDup2X2,
		classfile.OpPop, classfile.OpPop, classfile.OpPop, classfile.OpPop, classfile.OpPop,
		classfile.OpIreturn,
	})

	// Form 3: [1L 2 3] -> [2 3 1L 2 3]; two pops expose the long that the
	// int pair was duplicated across.
	form3 := buildMethod(pool, "form3", "()I", classfile.AccPublic|classfile.AccStatic, 8, 0, []byte{
		classfile.OpLconst1, classfile.OpIconst2, classfile.OpIconst3,
		classfile.OpDup2X2,
		classfile.OpPop, classfile.OpPop,
		classfile.OpL2i,
		classfile.OpIreturn,
	})

	v, calc, thread := newScenarioVM(t, pool, form1, form3)

	result, err := v.Invoke(thread, calc, "form1", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), result.I)

	result, err = v.Invoke(thread, calc, "form3", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.I)
}

// TestExceptionPropagatesAcrossFrames: an ArithmeticException raised two
// frames deep with no handler anywhere surfaces exactly once to the
// Invoke caller; with a matching handler in the calling frame, the
// handler runs with the exception as sole operand and the call completes
// normally.
func TestExceptionPropagatesAcrossFrames(t *testing.T) {
	pool := classfile.NewPool()
	boomRef := pool.AddMethodRef("Calc", "boom", "()I")
	catchType := pool.AddClass("java/lang/ArithmeticException")

	boom := buildMethod(pool, "boom", "()I", classfile.AccPublic|classfile.AccStatic, 2, 0,
		[]byte{classfile.OpIconst0, classfile.OpIconst0, classfile.OpIdiv, classfile.OpIreturn})

	// 0: invokestatic boom
	// 3: ireturn
	// 4: pop          <- handler entry, exception is the sole operand
	// 5: iconst_2
	// 6: ireturn
	callCode := []byte{
		classfile.OpInvokestatic, byte(boomRef >> 8), byte(boomRef),
		classfile.OpIreturn,
		classfile.OpPop,
		classfile.OpIconst2,
		classfile.OpIreturn,
	}
	uncaught := buildMethod(pool, "uncaught", "()I", classfile.AccPublic|classfile.AccStatic, 1, 0,
		append([]byte(nil), callCode...))
	caught := buildMethod(pool, "caught", "()I", classfile.AccPublic|classfile.AccStatic, 1, 0,
		append([]byte(nil), callCode...))
	caught.Attributes[0].(*classfile.CodeAttribute).Exceptions = []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 3, HandlerPC: 4, CatchType: catchType},
	}

	v, calc, thread := newScenarioVM(t, pool, boom, uncaught, caught)

	_, err := v.Invoke(thread, calc, "uncaught", "()I", nil)
	require.Error(t, err)
	jexc, ok := err.(*JavaException)
	require.True(t, ok, "expected a guest exception, got %v", err)
	assert.Equal(t, "java/lang/ArithmeticException", jexc.Value.Class.Name())
	assert.Zero(t, thread.Depth(), "every frame must be popped after propagation")

	result, err := v.Invoke(thread, calc, "caught", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), result.I)
}

// TestJarMainClassDiscovery: a VM handed an executable jar and no
// explicit main class adopts the manifest's Main-Class, and resolves it
// through the jar loader chained below the application loader.
func TestJarMainClassDiscovery(t *testing.T) {
	bootDir := t.TempDir()
	writeClass(t, bootDir, "java/lang/Object", "")

	helloPool := classfile.NewPool()
	this := helloPool.AddClass("HelloWorld")
	super := helloPool.AddClass("java/lang/Object")
	hello := &classfile.ClassFile{
		MajorVersion: 65,
		Pool:         helloPool,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    this,
		SuperClass:   super,
	}

	jarPath := filepath.Join(t.TempDir(), "app.jar")
	jarFile, err := os.Create(jarPath)
	require.NoError(t, err)
	zw := zip.NewWriter(jarFile)
	manifest, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = manifest.Write([]byte("Manifest-Version: 1.0\r\nMain-Class: HelloWorld\r\n"))
	require.NoError(t, err)
	entry, err := zw.Create("HelloWorld.class")
	require.NoError(t, err)
	_, err = entry.Write(classfile.Write(hello))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, jarFile.Close())

	log := trace.Noop()
	boot := classloader.NewLoader("bootstrap", nil, classpath.New(&classpath.DirEntry{Root: bootDir}), log)
	app := classloader.NewLoader("app", boot, classpath.New(), log)
	v := &VM{
		Boot:          boot,
		App:           app,
		log:           log,
		threads:       make(map[int64]*Thread),
		interned:      make(map[string]*runtime.Object),
		mirrorThreads: make(map[*runtime.Object]*Thread),
	}

	require.NoError(t, v.attachJar(jarPath))
	assert.Equal(t, "HelloWorld", v.Config.MainClass)

	c, err := v.mainLoader().LoadClass("HelloWorld")
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", c.Name())
	assert.Equal(t, "jar", c.Loader().Name, "the jar loader defines the jar's own classes")
	assert.Empty(t, app.Loaded(), "delegation must not cache jar classes at the application loader")
}
