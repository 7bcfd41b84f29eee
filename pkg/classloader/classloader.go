// Package classloader implements parent-first delegation over a tree of
// loaders and the runtime Class representation each loader produces,
// generalizing the teacher's JmodClassLoader/UserClassLoader pair (which
// only modeled a bootstrap-plus-one-user-loader chain) to an arbitrary
// delegation tree with the caching discipline section 5.3 of the JVM
// specification requires: a class is cached at the loader that actually
// located its bytes, not at the loader that first asked for it.
package classloader

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classpath"
	"go.uber.org/zap"
)

// Loader resolves binary names to bytes and caches the Classes it
// produces. The bootstrap loader's Parent is nil; every other loader's
// Parent is non-nil, per the parent-first delegation model.
type Loader struct {
	Name   string
	Parent *Loader
	path   *classpath.ClassPath

	mu      sync.RWMutex
	classes map[string]*Class

	log *zap.Logger
}

// NewLoader creates a loader named name, delegating to parent before
// consulting its own classpath. parent is nil only for the bootstrap
// loader.
func NewLoader(name string, parent *Loader, path *classpath.ClassPath, log *zap.Logger) *Loader {
	return &Loader{Name: name, Parent: parent, path: path, classes: make(map[string]*Class), log: log.Named("classloader." + name)}
}

// LoadClass resolves binaryName to a Class, per section 5.3.2's
// parent-first delegation: ask the parent chain first, and only search
// this loader's own classpath if every ancestor (down to bootstrap) comes
// up empty. The Class is cached on the loader that actually supplied the
// bytes, so a later LoadClass by a *child* loader for the same name finds
// it already cached at the ancestor and never re-reads or re-defines it.
func (l *Loader) LoadClass(binaryName string) (*Class, error) {
	if c := l.findLoadedAncestor(binaryName); c != nil {
		return c, nil
	}
	if l.Parent != nil {
		c, err := l.Parent.LoadClass(binaryName)
		if err == nil {
			return c, nil
		}
		// Parent delegation failed; this loader gets a chance itself.
	}
	return l.defineOwn(binaryName)
}

// findLoadedAncestor walks from this loader up to bootstrap looking for an
// already-cached Class, without triggering a define. LoadClass calls this
// first so two LoadClass calls for the same name from sibling loaders
// both land on the single cached Class their common ancestor produced.
func (l *Loader) findLoadedAncestor(binaryName string) *Class {
	for loader := l; loader != nil; loader = loader.Parent {
		loader.mu.RLock()
		c, ok := loader.classes[binaryName]
		loader.mu.RUnlock()
		if ok {
			return c
		}
	}
	return nil
}

// defineOwn reads binaryName from this loader's own classpath, parses it,
// and caches the resulting Class at this loader — never at an ancestor or
// descendant, since this loader is the one that actually located the
// bytes.
func (l *Loader) defineOwn(binaryName string) (*Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.classes[binaryName]; ok {
		return c, nil
	}

	if l.path == nil {
		return nil, &ClassNotFoundError{Name: binaryName}
	}
	data, ok, err := l.path.Find(binaryName)
	if err != nil {
		return nil, fmt.Errorf("searching classpath for %s: %w", binaryName, err)
	}
	if !ok {
		return nil, &ClassNotFoundError{Name: binaryName}
	}

	cf, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", binaryName, err)
	}
	name, err := cf.Name()
	if err != nil {
		return nil, err
	}
	if name != binaryName {
		return nil, fmt.Errorf("class %s declares name %s", binaryName, name)
	}

	c := newClass(cf, l)
	l.classes[binaryName] = c
	l.log.Debug("defined class", zap.String("class", binaryName))
	return c, nil
}

// DefineClass installs a pre-parsed ClassFile directly, bypassing this
// loader's classpath search — the path Class.forName(String, boolean,
// byte[]) and reflective proxy-class generation use.
func (l *Loader) DefineClass(binaryName string, cf *classfile.ClassFile) (*Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.classes[binaryName]; ok {
		return nil, fmt.Errorf("%s: attempted duplicate class definition", binaryName)
	}
	c := newClass(cf, l)
	l.classes[binaryName] = c
	return c, nil
}

// IsSame reports loader identity for Class.getClassLoader() equality and
// for the "defined by the same loader" rule access checks on package-
// private members rely on.
func (l *Loader) IsSame(other *Loader) bool { return l == other }

func (l *Loader) String() string { return l.Name }

// Loaded returns a snapshot of every binary name currently cached at this
// loader (not its ancestors), for diagnostics — vireomon's class-loader
// cache inspector tab walks a loader tree calling this at each node rather
// than reaching into Loader's private cache map.
func (l *Loader) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.classes))
	for name := range l.classes {
		names = append(names, name)
	}
	return names
}

// ClassNotFoundError is the host-side signal the VM translates into a
// thrown java.lang.ClassNotFoundException/NoClassDefFoundError at the call
// site, per spec.md's two-plane error model: loader plumbing fails with a
// plain Go error, and only the VM layer turns that into a Java exception
// object.
type ClassNotFoundError struct {
	Name string
}

func (e *ClassNotFoundError) Error() string { return fmt.Sprintf("class not found: %s", e.Name) }
