package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The sleep native's identity moved across releases; the flat table built
// for one release must contain only that release's variant.
func TestRegistryVersionRanges(t *testing.T) {
	jdk8 := NewRegistry(8)
	_, ok := jdk8.Lookup("java/lang/Thread", "sleep", "(J)V")
	assert.True(t, ok)
	_, ok = jdk8.Lookup("java/lang/Thread", "sleep0", "(J)V")
	assert.False(t, ok)

	jdk21 := NewRegistry(21)
	_, ok = jdk21.Lookup("java/lang/Thread", "sleep", "(J)V")
	assert.False(t, ok)
	_, ok = jdk21.Lookup("java/lang/Thread", "sleep0", "(J)V")
	assert.True(t, ok)
	_, ok = jdk21.Lookup("java/lang/Thread", "sleepNanos0", "(J)V")
	assert.True(t, ok)
}

func TestRegistryDefaultVersion(t *testing.T) {
	r := NewRegistry(0)
	assert.Equal(t, defaultJavaVersion, r.Version())
	_, ok := r.Lookup("java/lang/Object", "hashCode", "()I")
	assert.True(t, ok, "unconditional registrations are present at every release")
}
