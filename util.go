// This file holds the file-level plumbing shared by the rest of the
// package: the gzip+MRT record scanner, and the guarded writer that
// the log and stat streams are redirected through.

package gobottleneck

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"sync"

	mrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
)

// The log and stat streams may be written from multiple goroutines
// during the unsorted load. This is a simple writer wrapper to lock on
// a write, and unlock once the write is complete.
type MultiWriteFile struct {
	base io.WriteCloser
	mx   *sync.Mutex
}

func NewMultiWriteFile(w io.WriteCloser) *MultiWriteFile {
	return &MultiWriteFile{w, &sync.Mutex{}}
}

func (mwf *MultiWriteFile) WriteString(s string) (n int, err error) {
	return mwf.Write([]byte(s))
}

func (mwf *MultiWriteFile) Write(data []byte) (n int, err error) {
	mwf.mx.Lock()
	defer mwf.mx.Unlock()

	// A nil base trashes the stream
	if mwf.base == nil {
		return len(data), nil
	}
	return mwf.base.Write(data)
}

func (mwf *MultiWriteFile) Close() error {
	if mwf.base == nil {
		return nil
	}
	return mwf.base.Close()
}

type DiscardCloser struct{}

func (d DiscardCloser) Write(data []byte) (n int, err error) { return io.Discard.Write(data) }

func (d DiscardCloser) Close() error { return nil }

// getScanner wraps a gzip-compressed MRT table dump in a scanner that
// yields one framed record per Scan. The gzip header is checked here,
// so a file that is not actually gzip fails before any record is read.
func getScanner(fd *os.File) (*bufio.Scanner, error) {
	zreader, err := gzip.NewReader(bufio.NewReader(fd))
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(zreader)
	scanner.Split(mrt.SplitMrt)
	scanner.Buffer(make([]byte, 1<<16), 2<<24)
	return scanner, nil
}
