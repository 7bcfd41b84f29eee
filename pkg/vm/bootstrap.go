package vm

import (
	"fmt"
	"os"

	"github.com/vireo-vm/vireo/pkg/classloader"
	"github.com/vireo-vm/vireo/pkg/runtime"
	"go.uber.org/zap"
)

// RunMain drives the whole program lifecycle the teacher's Execute
// collapsed into one case statement: build the primordial thread and its
// java.lang.Thread mirror, run the System class-library bootstrap
// sequence, resolve and invoke the configured main class's
// main(String[]), and report an uncaught exception the way a real launcher
// does (stack trace to stderr, non-zero outcome) rather than letting it
// surface as a host-level Go error the caller must pattern-match.
func (v *VM) RunMain() error {
	main := NewThread(v, "main")
	v.registerThread(main)
	defer v.unregisterThread(main)
	defer close(main.done)

	if err := v.buildMainThreadMirror(main); err != nil {
		return fmt.Errorf("constructing main thread: %w", err)
	}

	if err := v.bootstrapSystemClass(main); err != nil {
		return fmt.Errorf("bootstrapping java.lang.System: %w", err)
	}

	if v.Config.MainClass == "" {
		return fmt.Errorf("no main class configured and no executable jar supplied one")
	}
	mainClass, err := v.mainLoader().LoadClass(v.Config.MainClass)
	if err != nil {
		return fmt.Errorf("loading main class %s: %w", v.Config.MainClass, err)
	}
	if max := v.ClassFileMajor(); mainClass.File().MajorVersion > max {
		return fmt.Errorf("%s: class file version %d exceeds this release's maximum %d",
			v.Config.MainClass, mainClass.File().MajorVersion, max)
	}

	argv := runtime.NewRefArray("Ljava/lang/String;", len(v.Config.Args))
	for i, a := range v.Config.Args {
		argv.SetRef(int32(i), v.internString(a))
	}

	_, err = v.Invoke(main, mainClass, "main", "([Ljava/lang/String;)V", []runtime.Value{runtime.Ref(argv)})
	if err == nil {
		return nil
	}
	jexc, ok := err.(*JavaException)
	if !ok {
		return err
	}
	v.reportUncaught(main, jexc)
	return jexc
}

// buildMainThreadMirror allocates the java.lang.Thread instance
// representing the thread RunMain itself runs on, populating just the
// fields the Thread/ThreadGroup natives (currentThread, isAlive0,
// setPriority0) read — not running Thread's real constructor chain, which
// would require a live ThreadGroup tree this VM does not model.
func (v *VM) buildMainThreadMirror(main *Thread) error {
	threadClass, err := v.Boot.LoadClass("java/lang/Thread")
	if err != nil {
		return err
	}
	mirror := runtime.NewObject(threadClass)
	mirror.SetField("name", runtime.Ref(v.internString("main")))
	mirror.SetField("tid", runtime.Long(main.ID))
	mirror.SetField("eetop", runtime.Long(0))

	// JDK 19 (loom) moved priority/daemon/threadStatus off Thread into a
	// Thread$FieldHolder sub-object; earlier releases (and the minimal
	// class libraries the test suite uses, which declare no FieldHolder)
	// keep them as direct fields. threadStatus 4 is RUNNABLE.
	if v.javaVersion() >= 19 {
		if holderClass, err := v.Boot.LoadClass("java/lang/Thread$FieldHolder"); err == nil {
			holder := runtime.NewObject(holderClass)
			holder.SetField("priority", runtime.Int(5))
			holder.SetField("daemon", runtime.Bool(false))
			holder.SetField("threadStatus", runtime.Int(4))
			mirror.SetField("holder", runtime.Ref(holder))
			v.BindMirror(mirror, main)
			return nil
		}
	}
	mirror.SetField("priority", runtime.Int(5))
	mirror.SetField("daemon", runtime.Bool(false))
	mirror.SetField("threadStatus", runtime.Int(4))
	v.BindMirror(mirror, main)
	return nil
}

// javaVersion is the configured JDK release, defaulting to the same
// modern release the native registry targets when unset.
func (v *VM) javaVersion() int {
	if v.Config.JavaVersion == 0 {
		return 21
	}
	return v.Config.JavaVersion
}

// ClassFileMajor is the highest class-file major version the configured
// release can load: Java N compiles to major N + 44.
func (v *VM) ClassFileMajor() uint16 { return uint16(v.javaVersion() + 44) }

// bootstrapSystemClass runs java.lang.System's class-library bring-up
// before any application bytecode executes, per section 5.5's requirement
// that System be initialized ahead of main. JDK 9 replaced the old
// single-method initializeSystemClass with three ordered phases; vireo
// picks the sequence the target JavaVersion actually ships, defaulting to
// the phased form since every jmods-based JAVA_HOME is modular.
func (v *VM) bootstrapSystemClass(main *Thread) error {
	systemClass, err := v.Boot.LoadClass("java/lang/System")
	if err != nil {
		return err
	}
	if err := v.ensureInitialized(main, systemClass); err != nil {
		return err
	}

	if v.javaVersion() < 9 {
		if _, err := v.callIfPresent(main, systemClass, "initializeSystemClass", "()V", nil); err != nil {
			return err
		}
		return nil
	}
	if _, err := v.callIfPresent(main, systemClass, "initPhase1", "()V", nil); err != nil {
		return err
	}
	phase2Args := []runtime.Value{runtime.Bool(true), runtime.Bool(true)}
	phase2Result, err := v.callIfPresent(main, systemClass, "initPhase2", "(ZZ)I", phase2Args)
	if err != nil {
		return err
	}
	if phase2Result.I != 0 {
		return fmt.Errorf("System.initPhase2 reported failure: %d", phase2Result.I)
	}
	if _, err := v.callIfPresent(main, systemClass, "initPhase3", "()V", nil); err != nil {
		return err
	}
	return nil
}

// callIfPresent invokes a static bootstrap hook only if the loaded class
// library actually declares it — minimal/test class libraries used under
// vireo's own test suite often skip these entirely, and that is not an
// error.
func (v *VM) callIfPresent(thread *Thread, class *classloader.Class, name, descriptor string, args []runtime.Value) (runtime.Value, error) {
	method, err := class.File().FindMethod(name, descriptor)
	if err != nil || method == nil {
		return runtime.Value{}, nil
	}
	return v.Invoke(thread, class, name, descriptor, args)
}

// reportUncaught prints an uncaught exception's message and vireo's best
// approximation of a JVM stack trace to stderr, the default
// UncaughtExceptionHandler's behavior for the thread that was running
// main.
func (v *VM) reportUncaught(thread *Thread, jexc *JavaException) {
	fmt.Fprintf(os.Stderr, "Exception in thread %q %s\n", thread.Name, jexc.Error())
	for _, line := range thread.StackTrace() {
		fmt.Fprintf(os.Stderr, "\tat %s\n", line)
	}
	v.log.Error("uncaught exception terminated main", zap.String("exception", jexc.Error()))
}
