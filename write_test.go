package gobottleneck

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBatchLineFormat(t *testing.T) {
	var out bytes.Buffer
	result := map[Address]uint32{
		addr(t, "1.0.6.0", 24): 4826,
	}

	require.NoError(t, writeBatch(result, &out))
	assert.Equal(t, "1.0.6.0/24|4826\n", out.String())
}

func TestWriteBatchOneLinePerAddress(t *testing.T) {
	var out bytes.Buffer
	result := map[Address]uint32{
		addr(t, "1.0.6.0", 24):    4826,
		addr(t, "1.0.139.0", 24):  38040,
		addr(t, "2001:318::", 32): 2497,
	}

	require.NoError(t, writeBatch(result, &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.ElementsMatch(t, []string{
		"1.0.6.0/24|4826",
		"1.0.139.0/24|38040",
		"2001:318::/32|2497",
	}, lines)
}

func TestCopyToDest(t *testing.T) {
	dir := t.TempDir()
	content := "1.0.6.0/24|4826\n1.0.139.0/24|38040\n"

	dst, err := CopyToDest(strings.NewReader(content), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(dst))
	assert.Regexp(t, regexp.MustCompile(`^bottleneck\.\d+\.txt$`), filepath.Base(dst))

	copied, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(copied))
}

func TestCollapseChildren(t *testing.T) {
	result := map[Address]uint32{
		addr(t, "1.0.0.0", 8):     100,
		addr(t, "1.2.0.0", 16):    200,
		addr(t, "1.2.3.0", 24):    300,
		addr(t, "2.0.0.0", 8):     400,
		addr(t, "2001:318::", 32): 500,
	}

	collapseChildren(result)

	assert.Equal(t, map[Address]uint32{
		addr(t, "1.0.0.0", 8):     100,
		addr(t, "2.0.0.0", 8):     400,
		addr(t, "2001:318::", 32): 500,
	}, result)
}

func TestPrefixFilter(t *testing.T) {
	filter, err := NewPrefixFilter("1.0.0.0/8,2001::/16")
	require.NoError(t, err)

	assert.True(t, filter(addr(t, "1.2.3.0", 24)))
	assert.True(t, filter(addr(t, "2001:318::", 32)))
	assert.False(t, filter(addr(t, "2.0.0.0", 24)))

	_, err = NewPrefixFilter("1.0.0.0")
	assert.Error(t, err)

	_, err = NewPrefixFilter("bogus/8")
	assert.Error(t, err)
}
