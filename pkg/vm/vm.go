// Package vm implements the interpreter: frames, threads, class
// initialization driving, exception propagation and the native dispatch
// hookup, built around the classfile/classloader/runtime packages.
package vm

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/classpath"
	"github.com/vireo-vm/vireo/pkg/runtime"
	"go.uber.org/zap"
)

// NativeMethod is the signature every registered native implementation
// satisfies: it receives the owning VM, the calling thread, and already
// popped argument Values (this first, for instance methods), and returns
// the method's result (zero Value for void) or a *JavaException.
type NativeMethod func(vm *VM, thread *Thread, args []runtime.Value) (runtime.Value, error)

// NativeRegistry resolves (class, name, descriptor) to a NativeMethod.
// Defined as an interface here so pkg/native can implement it without vm
// importing native (which imports vm, for NativeMethod/VM/Thread) — this
// is the one place a potential import cycle is broken by inversion.
type NativeRegistry interface {
	Lookup(className, name, descriptor string) (NativeMethod, bool)
}

// Configuration bundles the inputs cmd/vireo's CLI builds the VM from.
type Configuration struct {
	JavaHome    string
	ClassPath   string
	MainClass   string
	JarPath     string // executable jar; its manifest supplies MainClass when that is empty
	Args        []string
	SystemProps map[string]string
	Verbose     bool

	// JavaVersion selects which System bootstrap sequence RunMain drives:
	// JDK 9+ split class-library bring-up into System.initPhase1/2/3,
	// while 8 and earlier used a single initializeSystemClass. Defaults
	// to 9+ behavior (JavaVersion == 0) since every jmods-based JAVA_HOME
	// this loads from is modular.
	JavaVersion int
}

// VM is the top-level facade: one per running program, owning the loader
// tree, the native registry, and the live thread set.
type VM struct {
	Boot    *classloader.Loader
	App     *classloader.Loader
	Jar     *classloader.Loader // only when Configuration.JarPath was given
	Natives NativeRegistry
	Config  Configuration
	log     *zap.Logger

	nextThreadID int64
	threadsMu    sync.Mutex
	threads      map[int64]*Thread

	internMu sync.Mutex
	interned map[string]*runtime.Object

	stringClass *classloader.Class

	mirrorMu      sync.Mutex
	mirrorThreads map[*runtime.Object]*Thread

	callSitesMu sync.Mutex
	callSites   map[callSiteKey]*CallSite
}

// New builds a VM with its bootstrap and application loaders wired up, but
// does not yet run main; callers call RunMain.
func New(cfg Configuration, natives NativeRegistry, log *zap.Logger) (*VM, error) {
	boot, err := classloader.NewBootstrapLoader(cfg.JavaHome, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping class loader: %w", err)
	}
	app, err := classloader.NewApplicationLoader(boot, cfg.ClassPath, log)
	if err != nil {
		return nil, fmt.Errorf("building application class loader: %w", err)
	}
	v := &VM{
		Boot:          boot,
		App:           app,
		Natives:       natives,
		Config:        cfg,
		log:           log,
		threads:       make(map[int64]*Thread),
		interned:      make(map[string]*runtime.Object),
		mirrorThreads: make(map[*runtime.Object]*Thread),
		callSites:     make(map[callSiteKey]*CallSite),
	}
	if cfg.JarPath != "" {
		if err := v.attachJar(cfg.JarPath); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// attachJar chains an executable jar's loader below the application
// loader (bootstrap -> app -> jar) and, when no main class was configured
// explicitly, adopts the jar manifest's Main-Class as the program entry
// point — the `java -jar` contract.
func (v *VM) attachJar(path string) error {
	jar, err := classpath.OpenJar(path, false)
	if err != nil {
		return fmt.Errorf("opening jar %s: %w", path, err)
	}
	v.Jar = classloader.NewLoader("jar", v.App, classpath.New(jar), v.log)
	if v.Config.MainClass != "" {
		return nil
	}
	name, ok, err := jar.ManifestMainClass()
	if err != nil {
		return fmt.Errorf("reading manifest of %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%s: no Main-Class in MANIFEST.MF and no main class configured", path)
	}
	v.Config.MainClass = strings.ReplaceAll(name, ".", "/")
	return nil
}

// mainLoader is the loader the main class resolves through: the jar
// loader when an executable jar was attached, the application loader
// otherwise.
func (v *VM) mainLoader() *classloader.Loader {
	if v.Jar != nil {
		return v.Jar
	}
	return v.App
}

// newThreadID hands out a monotonically increasing thread identifier,
// used both as the map key in v.threads and as the Object monitor's
// holder tag.
func (v *VM) newThreadID() int64 { return atomic.AddInt64(&v.nextThreadID, 1) }

func (v *VM) registerThread(t *Thread) {
	v.threadsMu.Lock()
	v.threads[t.ID] = t
	v.threadsMu.Unlock()
}

func (v *VM) unregisterThread(t *Thread) {
	v.threadsMu.Lock()
	delete(v.threads, t.ID)
	v.threadsMu.Unlock()
}

// Threads returns a snapshot of the live threads, for Thread.getAllStackTraces
// and the vireomon diagnostics TUI.
func (v *VM) Threads() []*Thread {
	v.threadsMu.Lock()
	defer v.threadsMu.Unlock()
	out := make([]*Thread, 0, len(v.threads))
	for _, t := range v.threads {
		out = append(out, t)
	}
	return out
}

// internString returns the canonical *runtime.Object for a Go string
// value, creating a new java.lang.String-class instance on first sight,
// per the string pool semantics section 5.1 describes for CONSTANT_String
// resolution and String.intern().
// InternString is the exported entry point natives use to produce a
// java.lang.String for a host string (System property values, exception
// messages, Thread names).
func (v *VM) InternString(s string) *runtime.Object { return v.internString(s) }

func (v *VM) internString(s string) *runtime.Object {
	v.internMu.Lock()
	defer v.internMu.Unlock()
	if obj, ok := v.interned[s]; ok {
		return obj
	}
	class := v.stringClass
	if class == nil {
		var err error
		class, err = v.Boot.LoadClass("java/lang/String")
		if err == nil {
			v.stringClass = class
		}
	}
	obj := runtime.NewObject(class)
	obj.SetField("value", runtime.Ref(goStringAsCharArray(s)))
	v.interned[s] = obj
	return obj
}

func goStringAsCharArray(s string) *runtime.Array {
	runes := []rune(s)
	arr := runtime.NewPrimitiveArray(runtime.ElemChar, len(runes))
	for i, r := range runes {
		arr.SetChar(int32(i), uint16(r))
	}
	return arr
}

// GoString extracts a Go string back out of a java.lang.String instance's
// backing char[], the inverse of internString, used at every
// native-to-host boundary (System.out.println, exception messages,
// command-line argv construction).
func GoString(obj *runtime.Object) (string, bool) {
	if obj == nil {
		return "", false
	}
	v, ok := obj.GetField("value")
	if !ok || v.Ref == nil {
		return "", false
	}
	arr, ok := v.Ref.(*runtime.Array)
	if !ok {
		return "", false
	}
	runes := make([]rune, arr.Length())
	for i := range runes {
		runes[i] = rune(arr.GetChar(int32(i)))
	}
	return string(runes), true
}

// ensureInitialized drives a class through the initialization state
// machine (section 5.5), running <clinit> at most once even under
// concurrent callers — the synchronized counterpart to the teacher's
// unsynchronized ensureInitialized map check. Superclasses are initialized
// first, before this class's own <clinit>, per 5.5's ordering rule.
func (v *VM) ensureInitialized(thread *Thread, class *classloader.Class) error {
	super, err := class.Super()
	if err != nil {
		return err
	}
	if super != nil {
		if err := v.ensureInitialized(thread, super); err != nil {
			return err
		}
	}

	shouldRun, done, err := class.BeginInit(thread.ID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if !shouldRun {
		return nil
	}

	clinit, err := class.File().FindMethod("<clinit>", "()V")
	if err != nil {
		class.FinishInit(err)
		return err
	}
	if clinit == nil {
		class.FinishInit(nil)
		return nil
	}

	_, execErr := v.executeMethod(thread, class, clinit, nil)
	class.FinishInit(execErr)
	return execErr
}

// BindMirror associates a java.lang.Thread instance with the vm.Thread
// running it, so instance natives (isAlive0, interrupt0, setPriority0)
// that receive only the mirror object can recover the scheduler-level
// Thread.
func (v *VM) BindMirror(mirror *runtime.Object, t *Thread) {
	v.mirrorMu.Lock()
	v.mirrorThreads[mirror] = t
	t.Mirror = mirror
	v.mirrorMu.Unlock()
}

// ThreadForMirror is BindMirror's inverse lookup.
func (v *VM) ThreadForMirror(mirror *runtime.Object) (*Thread, bool) {
	v.mirrorMu.Lock()
	defer v.mirrorMu.Unlock()
	t, ok := v.mirrorThreads[mirror]
	return t, ok
}

// StartThread spawns a goroutine running mirror's run() method as thread
// t, per the goroutine-per-Java-thread model (section 7): t is registered
// for the duration of the call and unregistered on return, and an
// uncaught *JavaException is logged rather than propagated, matching the
// JVM's default uncaught exception handler.
func (v *VM) StartThread(t *Thread, mirror *runtime.Object) {
	v.BindMirror(mirror, t)
	v.registerThread(t)
	go func() {
		defer close(t.done)
		defer v.unregisterThread(t)
		class, ok := mirror.Class.(*classloader.Class)
		if !ok {
			return
		}
		_, declMethod, err := resolveMethod(class, "run", "()V")
		if err != nil || declMethod == nil {
			return
		}
		if _, err := v.executeMethod(t, class, declMethod, []runtime.Value{runtime.Ref(mirror)}); err != nil {
			if jexc, ok := err.(*JavaException); ok {
				v.log.Error("uncaught exception", zap.String("thread", t.Name), zap.String("exception", jexc.Error()))
			} else {
				v.log.Error("thread execution failed", zap.String("thread", t.Name), zap.Error(err))
			}
		}
	}()
}
