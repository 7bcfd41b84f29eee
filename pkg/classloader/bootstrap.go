package classloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vireo-vm/vireo/pkg/classpath"
	"go.uber.org/zap"
)

// NewBootstrapLoader builds the root of the delegation tree from a JDK
// installation's jmods directory, following the teacher's cmd/gojvm
// discovery of $JAVA_HOME/jmods/*.jmod — generalized here to index every
// jmod present instead of hard-coding java.base.
func NewBootstrapLoader(javaHome string, log *zap.Logger) (*Loader, error) {
	jmodsDir := filepath.Join(javaHome, "jmods")
	entries, err := os.ReadDir(jmodsDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", jmodsDir, err)
	}

	var jarEntries []classpath.Entry
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jmod" {
			continue
		}
		jar, err := classpath.OpenJar(filepath.Join(jmodsDir, e.Name()), true)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", e.Name(), err)
		}
		jarEntries = append(jarEntries, jar)
	}
	if len(jarEntries) == 0 {
		return nil, fmt.Errorf("%s: no .jmod files found", jmodsDir)
	}

	return NewLoader("bootstrap", nil, classpath.New(jarEntries...), log), nil
}

// NewApplicationLoader builds the user/application class loader, the
// default loader a launched program's classes see as their own. It
// delegates to parent (ordinarily the bootstrap loader, or a platform
// loader layered between the two in a full JDK, which this VM elides
// since no extension-mechanism support is in scope).
func NewApplicationLoader(parent *Loader, cp string, log *zap.Logger) (*Loader, error) {
	path, err := classpath.ParseClassPath(cp)
	if err != nil {
		return nil, err
	}
	return NewLoader("app", parent, path, log), nil
}
