package gobottleneck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinWidthValidation(t *testing.T) {
	for _, width := range []int{10, 3, 257, -16} {
		_, err := GetBottleneckConfig(ConfigFile{BinWidth: width, Lo: "stdout", So: "stdout"})
		assert.Error(t, err, "width %d", width)
	}

	bc, err := GetBottleneckConfig(ConfigFile{Lo: "stdout", So: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, defaultBinWidth, bc.binWidth)
}

func TestMissingDirectoryIsFatal(t *testing.T) {
	_, err := GetBottleneckConfig(ConfigFile{
		SortedDir: filepath.Join(t.TempDir(), "does-not-exist"),
		Lo:        "stdout",
		So:        "stdout",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestYAMLConfigOverlay(t *testing.T) {
	sortedDir, unsortedDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sortedDir, "rib.gz"), []byte{}, 0644))

	confPath := filepath.Join(t.TempDir(), "run.yaml")
	conf := "sortedDir: " + sortedDir + "\n" +
		"unsortedDir: " + unsortedDir + "\n" +
		"binWidth: 32\n" +
		"workerCount: 4\n" +
		"topOnly: true\n" +
		"prefixes: 1.0.0.0/8\n"
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0644))

	bc, err := GetBottleneckConfig(ConfigFile{Conf: confPath, BinWidth: 16, Lo: "stdout", So: "stdout"})
	require.NoError(t, err)

	// Keys present in the file win over flag values.
	assert.Equal(t, 32, bc.binWidth)
	assert.Equal(t, 4, bc.workers)
	assert.True(t, bc.topOnly)
	assert.NotNil(t, bc.filter)
	assert.Equal(t, []string{filepath.Join(sortedDir, "rib.gz")}, bc.sorted)
	assert.Empty(t, bc.unsorted)
}

// Streams pointed at "discard" or at a file that cannot be created
// swallow writes without erroring; the run must not fail over them.
func TestWriteFileTrashesUnusableOutputs(t *testing.T) {
	mwf := newWriteFile("discard")
	n, err := mwf.WriteString("dropped")
	require.NoError(t, err)
	assert.Equal(t, len("dropped"), n)
	require.NoError(t, mwf.Close())

	mwf = newWriteFile(filepath.Join(t.TempDir(), "missing", "run.log"))
	n, err = mwf.WriteString("also dropped")
	require.NoError(t, err)
	assert.Equal(t, len("also dropped"), n)
	require.NoError(t, mwf.Close())
}

func TestStringArrayDrains(t *testing.T) {
	source := NewStringArray([]string{"a", "b"})

	name, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	name, err = source.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, err = source.Next()
	assert.Equal(t, EOP, err)
}
