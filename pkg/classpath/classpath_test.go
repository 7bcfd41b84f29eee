package classpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirEntryFind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "com", "example"), 0o755))
	classBytes := []byte{0xCA, 0xFE, 0xBA, 0xBE}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "com", "example", "Hello.class"), classBytes, 0o644))

	entry := &DirEntry{Root: dir}
	data, ok, err := entry.Find("com/example/Hello")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, classBytes, data)

	_, ok, err = entry.Find("com/example/Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseClassPathOrdering(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "Shadowed.class"), []byte{1}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(first, "Shadowed.class"), []byte{2}, 0o644))

	cp, err := ParseClassPath(first + string(os.PathListSeparator) + second)
	require.NoError(t, err)
	defer cp.Close()

	data, ok, err := cp.Find("Shadowed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{2}, data, "earlier classpath entries must shadow later ones")
}
