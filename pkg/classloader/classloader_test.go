package classloader

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vireo-vm/vireo/internal/trace"
	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classpath"
	"go.uber.org/zap"
)

func noopLogger() *zap.Logger { return trace.Noop() }

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
	data := classfile.Write(cf)
	full := filepath.Join(dir, filepath.FromSlash(binaryName)+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func newLoaderPair(t *testing.T) (boot, app *Loader) {
	t.Helper()
	bootDir := t.TempDir()
	appDir := t.TempDir()
	writeClass(t, bootDir, "java/lang/Object", "")
	writeClass(t, appDir, "com/example/App", "java/lang/Object")

	bootCP := classpath.New(&classpath.DirEntry{Root: bootDir})
	appCP := classpath.New(&classpath.DirEntry{Root: appDir})

	log := noopLogger()
	boot = NewLoader("bootstrap", nil, bootCP, log)
	app = NewLoader("app", boot, appCP, log)
	return boot, app
}

func TestParentFirstDelegation(t *testing.T) {
	_, app := newLoaderPair(t)

	objClass, err := app.LoadClass("java/lang/Object")
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", objClass.Name())
	assert.Equal(t, "bootstrap", objClass.Loader().Name, "a bootstrap-visible class must be cached at the bootstrap loader")
}

func TestCachingAtDefiningLoader(t *testing.T) {
	boot, app := newLoaderPair(t)

	first, err := app.LoadClass("com/example/App")
	require.NoError(t, err)
	second, err := app.LoadClass("com/example/App")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeat LoadClass from the same loader must return the identical Class")

	_, err = boot.LoadClass("com/example/App")
	assert.Error(t, err, "the bootstrap loader must not see classes only on the app loader's path")
}

func TestClassNotFound(t *testing.T) {
	_, app := newLoaderPair(t)
	_, err := app.LoadClass("does/not/Exist")
	require.Error(t, err)
	var notFound *ClassNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestInitStateMachineSingleRunner(t *testing.T) {
	_, app := newLoaderPair(t)
	c, err := app.LoadClass("com/example/App")
	require.NoError(t, err)

	shouldRun, done, err := c.BeginInit(1)
	require.NoError(t, err)
	assert.True(t, shouldRun)
	assert.False(t, done)

	// A second thread arriving while initialization is in flight must not
	// also be told to run it.
	resultCh := make(chan bool, 1)
	go func() {
		run, _, _ := c.BeginInit(2)
		resultCh <- run
	}()

	c.FinishInit(nil)
	assert.False(t, <-resultCh)
	assert.Equal(t, Initialized, c.State())
}

func TestDistinctLoadersProduceDistinctClasses(t *testing.T) {
	// Two sibling loaders reading byte-identical class files must still
	// yield two distinct Classes: a JVM class is keyed by (name, defining
	// loader), not by its bytes.
	dir := t.TempDir()
	writeClass(t, dir, "com/example/Dup", "")

	log := noopLogger()
	first := NewLoader("first", nil, classpath.New(&classpath.DirEntry{Root: dir}), log)
	second := NewLoader("second", nil, classpath.New(&classpath.DirEntry{Root: dir}), log)

	c1, err := first.LoadClass("com/example/Dup")
	require.NoError(t, err)
	c2, err := second.LoadClass("com/example/Dup")
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)
	assert.Equal(t, c1.Name(), c2.Name())
}

func TestConcurrentInitRunsClinitExactlyOnce(t *testing.T) {
	_, app := newLoaderPair(t)
	c, err := app.LoadClass("com/example/App")
	require.NoError(t, err)

	const threads = 16
	var runners int32
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			shouldRun, done, err := c.BeginInit(id)
			assert.NoError(t, err)
			if shouldRun {
				atomic.AddInt32(&runners, 1)
				c.FinishInit(nil)
				return
			}
			assert.True(t, done, "a non-running thread must only proceed once initialization completed")
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int32(1), runners, "exactly one thread runs <clinit>")
	assert.Equal(t, Initialized, c.State())
}

func TestLoadedReflectsOwnCacheOnly(t *testing.T) {
	boot, app := newLoaderPair(t)

	assert.Empty(t, boot.Loaded(), "nothing loaded yet")
	_, err := app.LoadClass("java/lang/Object")
	require.NoError(t, err)
	_, err = app.LoadClass("com/example/App")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"java/lang/Object"}, boot.Loaded(),
		"java/lang/Object was defined at bootstrap via delegation, not at app")
	assert.ElementsMatch(t, []string{"com/example/App"}, app.Loaded(),
		"app only caches what it actually defined itself")
}

func TestInitRecursiveSameThread(t *testing.T) {
	_, app := newLoaderPair(t)
	c, err := app.LoadClass("com/example/App")
	require.NoError(t, err)

	shouldRun, _, err := c.BeginInit(7)
	require.NoError(t, err)
	require.True(t, shouldRun)

	// <clinit> itself triggers a reference back to its own class (common
	// for self-referential static initializers); must not deadlock.
	again, done, err := c.BeginInit(7)
	require.NoError(t, err)
	assert.False(t, again)
	assert.True(t, done)
}
