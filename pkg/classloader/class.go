package classloader

import (
	"fmt"
	"sync"

	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/runtime"
)

// InitState is a class's position in the initialization state machine of
// section 5.5: every class starts Linked and moves through at most one
// Initializing->{Initialized,Erroneous} transition, driven by exactly one
// thread racing the rest to run <clinit>.
type InitState int

const (
	Linked InitState = iota
	Initializing
	Initialized
	Erroneous
)

// Class is the runtime representation of a loaded class: its parsed
// ClassFile, defining loader, resolved superclass/interfaces, static field
// storage, and the concurrency-safe init state machine. This replaces the
// teacher's bare ClassFile-as-runtime-type with the richer object section
// 5.3-5.5 require.
type Class struct {
	file   *classfile.ClassFile
	loader *Loader

	resolveOnce sync.Once
	superClass  *Class
	interfaces  []*Class
	resolveErr  error

	mu         sync.Mutex
	cond       *sync.Cond
	state      InitState
	initThread int64
	statics    map[string]runtime.Value
	mirror     runtime.Reference // lazily created java.lang.Class instance
}

func newClass(cf *classfile.ClassFile, loader *Loader) *Class {
	c := &Class{file: cf, loader: loader, state: Linked, statics: make(map[string]runtime.Value)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// File returns the underlying parsed class file.
func (c *Class) File() *classfile.ClassFile { return c.file }

// Loader returns the defining loader, the identity half of a JVM class's
// (name, loader) key (section 5.3.4).
func (c *Class) Loader() *Loader { return c.loader }

// Name resolves this class's own binary name; it satisfies
// runtime.Class so Object/Array can reference their class without
// importing classloader back (which would cycle).
func (c *Class) Name() string {
	name, err := c.file.Name()
	if err != nil {
		return "<unknown>"
	}
	return name
}

func (c *Class) IsInterface() bool { return c.file.IsInterface() }

// resolveSupers walks the superclass and interface chain through the
// defining loader, exactly once. A class's supertypes must be resolved
// with the SAME loader that resolved the class itself (section 5.3.5);
// using c.loader.LoadClass (not some other loader) here is what keeps
// that invariant.
func (c *Class) resolveSupers() error {
	c.resolveOnce.Do(func() {
		superName, err := c.file.SuperName()
		if err != nil {
			c.resolveErr = err
			return
		}
		if superName != "" {
			sup, err := c.loader.LoadClass(superName)
			if err != nil {
				c.resolveErr = fmt.Errorf("resolving superclass %s of %s: %w", superName, c.Name(), err)
				return
			}
			c.superClass = sup
		}
		ifaceNames, err := c.file.InterfaceNames()
		if err != nil {
			c.resolveErr = err
			return
		}
		for _, name := range ifaceNames {
			iface, err := c.loader.LoadClass(name)
			if err != nil {
				c.resolveErr = fmt.Errorf("resolving interface %s of %s: %w", name, c.Name(), err)
				return
			}
			c.interfaces = append(c.interfaces, iface)
		}
	})
	return c.resolveErr
}

// Super returns the resolved superclass, or nil for java.lang.Object.
func (c *Class) Super() (*Class, error) {
	if err := c.resolveSupers(); err != nil {
		return nil, err
	}
	return c.superClass, nil
}

// Interfaces returns the resolved direct superinterfaces.
func (c *Class) Interfaces() ([]*Class, error) {
	if err := c.resolveSupers(); err != nil {
		return nil, err
	}
	return c.interfaces, nil
}

// IsSubclassOf walks the superclass chain (not interfaces) looking for
// target, used by checkcast/instanceof and exception-handler matching.
func (c *Class) IsSubclassOf(target *Class) (bool, error) {
	cur := c
	for cur != nil {
		if cur == target {
			return true, nil
		}
		var err error
		cur, err = cur.Super()
		if err != nil {
			return false, err
		}
	}
	return false, nil
}

// Implements reports whether c implements target anywhere in its
// interface closure (direct or inherited through superinterfaces or
// superclasses), the general case instanceof against an interface type
// needs.
func (c *Class) Implements(target *Class) (bool, error) {
	cur := c
	for cur != nil {
		ifaces, err := cur.Interfaces()
		if err != nil {
			return false, err
		}
		for _, iface := range ifaces {
			if iface == target {
				return true, nil
			}
			if ok, err := iface.Implements(target); err != nil {
				return false, err
			} else if ok {
				return true, nil
			}
		}
		cur, err = cur.Super()
		if err != nil {
			return false, err
		}
	}
	return false, nil
}

// State returns the class's current position in the initialization state
// machine.
func (c *Class) State() InitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginInit implements the heart of section 5.5's state machine: exactly
// one goroutine (identified by threadID) is told "you run <clinit>"; every
// other caller — including re-entrant calls from the initializing thread
// itself — is told to proceed without running it (recursive <clinit>
// triggering is legal and must not deadlock), and callers arriving after
// initialization already completed are told done=true immediately.
//
// Returns (shouldRun, done, err): shouldRun means the caller must execute
// <clinit> and then call FinishInit; done means initialization already
// happened (successfully) and the caller should just proceed; err is set
// if a previous attempt left the class Erroneous, which must be reported
// as NoClassDefFoundError at every subsequent use.
func (c *Class) BeginInit(threadID int64) (shouldRun, done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		switch c.state {
		case Initialized:
			return false, true, nil
		case Erroneous:
			return false, false, fmt.Errorf("%s: prior initialization attempt failed", c.Name())
		case Initializing:
			if c.initThread == threadID {
				return false, true, nil // recursive reference from <clinit> itself
			}
			c.cond.Wait()
		case Linked:
			c.state = Initializing
			c.initThread = threadID
			return true, false, nil
		}
	}
}

// FinishInit transitions Initializing -> Initialized (or Erroneous on
// failure) and wakes every thread blocked in BeginInit.
func (c *Class) FinishInit(failure error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failure != nil {
		c.state = Erroneous
	} else {
		c.state = Initialized
	}
	c.cond.Broadcast()
}

// StaticField reads a static field's current value.
func (c *Class) StaticField(name string) (runtime.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.statics[name]
	return v, ok
}

func (c *Class) SetStaticField(name string, v runtime.Value) {
	c.mu.Lock()
	c.statics[name] = v
	c.mu.Unlock()
}

// Mirror returns the lazily-created java.lang.Class instance standing in
// for this Class at the Java level (Object.getClass(), MyClass.class).
func (c *Class) Mirror(create func() runtime.Reference) runtime.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil {
		c.mirror = create()
	}
	return c.mirror
}
