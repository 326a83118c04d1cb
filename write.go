// The result writer: one "ip/mask|asn" line per resolved address, and
// the end-of-run copy of the accumulated stream to its timestamped
// destination.

package gobottleneck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// writeBatch emits one line per resolved address, in map iteration
// order, and flushes before returning.
func writeBatch(result map[Address]uint32, out io.Writer) error {
	bw := bufio.NewWriter(out)
	for addr, asn := range result {
		if _, err := fmt.Fprintf(bw, "%s/%d|%d\n", addr.IP, addr.Mask, asn); err != nil {
			return fmt.Errorf("writing result line for %s: %w", addr, err)
		}
	}
	return bw.Flush()
}

// CopyToDest copies the accumulated result stream byte for byte to
// bottleneck.<unix-epoch-seconds>.txt inside dir, or the working
// directory when dir is empty, and returns the destination path.
func CopyToDest(result io.Reader, dir string) (string, error) {
	name := fmt.Sprintf("bottleneck.%d.txt", time.Now().Unix())
	dst := name
	if dir != "" {
		dst = filepath.Join(dir, name)
	}

	fd, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}
	defer fd.Close()

	bw := bufio.NewWriter(fd)
	if _, err := io.Copy(bw, bufio.NewReader(result)); err != nil {
		return "", fmt.Errorf("copying result to %s: %w", dst, err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", dst, err)
	}
	return dst, nil
}
