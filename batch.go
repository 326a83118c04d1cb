// The batch windower. This file drives a run: it owns the persistent
// per-file scanners, walks the address space one leading-byte range at
// a time, folds the unsorted cache into each range, and hands every
// finished range to the resolver and writer.
//
// Peak memory is bounded by one range's worth of sorted-file data plus
// the unsorted cache: sorted files are assumed non-decreasing in the
// leading address byte, which holds for RIPE archives and anything
// Quagga produces. A file violating the assumption silently lands
// records in the wrong range; such files belong in the unsorted
// directory instead.

package gobottleneck

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// errBadStream marks a file whose compressed stream could not be
// opened. Such files are skipped; the run continues.
var errBadStream = errors.New("unreadable compressed stream")

// A fileCursor is the persistent read position of one sorted file. It
// is advanced once per bin and owned exclusively by its slot in the
// cursor list.
type fileCursor struct {
	name    string
	fd      *os.File
	scanner *bufio.Scanner
	done    bool
}

func openCursor(name string) (*fileCursor, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	scanner, err := getScanner(fd)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("%w: %s: %v", errBadStream, name, err)
	}
	return &fileCursor{name: name, fd: fd, scanner: scanner}, nil
}

func (c *fileCursor) close() {
	if c.done {
		return
	}
	c.done = true
	c.fd.Close()
}

type locator struct {
	cfg      *BottleneckConfig
	log      *slog.Logger
	cursors  []*fileCursor
	carry    batchMap
	unsorted batchMap
	out      io.Writer
}

// Locate runs the whole pipeline: it materializes the unsorted files
// into the one-time cache, then walks the sorted files one
// leading-byte bin at a time, resolving and writing each bin as it
// completes, and finally flushes whatever the cache still holds.
func Locate(cfg *BottleneckConfig, out io.Writer) error {
	l := &locator{
		cfg:      cfg,
		log:      withComponent("locate"),
		carry:    make(batchMap),
		unsorted: make(batchMap),
		out:      out,
	}

	if err := l.loadUnsorted(); err != nil {
		return err
	}

	for _, name := range cfg.sorted {
		cur, err := openCursor(name)
		if err != nil {
			if errors.Is(err, errBadStream) {
				l.log.Warn("skipping file", "error", err)
				cfg.stats.filesSkipped.Inc()
				continue
			}
			return err
		}
		defer cur.close()
		l.cursors = append(l.cursors, cur)
	}

	for start := 0; start <= math.MaxUint8; start += cfg.binWidth {
		bound := start + cfg.binWidth
		if bound > math.MaxUint8 {
			bound = math.MaxUint8
		}
		if err := l.runBin(uint8(bound)); err != nil {
			return err
		}
	}

	// Addresses seen only in unsorted files never matched a bin; they
	// are resolved and written exactly once here.
	return l.flush(l.unsorted)
}

// runBin processes one leading-byte range ending at bound (inclusive).
func (l *locator) runBin(bound uint8) error {
	// A prefix can have records on both sides of a bin boundary, so
	// the batch starts from whatever the previous bin read past its
	// own bound. Without this, boundary addresses would be written
	// either twice or not at all.
	batch := l.carry
	l.carry = make(batchMap)

	for _, cur := range l.cursors {
		if cur.done {
			continue
		}
		l.scanTo(cur, bound, batch)
	}

	// Cherry-pick the unsorted cache entries falling due with this
	// bin, so they are resolved exactly once.
	for addr, paths := range batch {
		if cached, ok := l.unsorted[addr]; ok {
			paths.union(cached)
			delete(l.unsorted, addr)
		}
	}

	l.cfg.stats.binsFlushed.Inc()
	return l.flush(batch)
}

// scanTo reads records from one file until the stream ends or a
// record's leading address byte exceeds bound. That first out-of-range
// record has already been consumed from the stream, so it is parked in
// the carry-over map; the cursor resumes from there next bin. Stream
// and record decode errors abandon the remainder of the file only.
func (l *locator) scanTo(cur *fileCursor, bound uint8, batch batchMap) {
	for cur.scanner.Scan() {
		l.cfg.stats.recordsScanned.Inc()
		rec, ok, err := parseRibRecord(cur.scanner.Bytes())
		if err != nil {
			l.log.Warn("skipping rest of file", "file", cur.name, "error", err)
			l.cfg.stats.filesSkipped.Inc()
			cur.close()
			return
		}
		if !ok {
			continue
		}
		if rec.addr.leadingByte() > bound {
			l.mergeRecord(rec, l.carry)
			return
		}
		l.mergeRecord(rec, batch)
	}
	if err := cur.scanner.Err(); err != nil {
		l.log.Warn("skipping rest of file", "file", cur.name, "error", err)
		l.cfg.stats.filesSkipped.Inc()
	}
	cur.close()
}

// loadUnsorted materializes every file with no sort guarantee into the
// unsorted cache before the bin walk begins. Files are independent, so
// they are read in parallel; merges into the shared cache serialize on
// a mutex.
func (l *locator) loadUnsorted() error {
	var source stringsource = NewStringArray(l.cfg.unsorted)
	var mux sync.Mutex
	group := new(errgroup.Group)

	for w := 0; w < l.cfg.workers; w++ {
		group.Go(func() error {
			for {
				name, serr := source.Next()
				if serr != nil {
					return nil // EOP
				}
				local := make(batchMap)
				if err := l.loadWholeFile(name, local); err != nil {
					return err
				}
				mux.Lock()
				for addr, paths := range local {
					if cached, ok := l.unsorted[addr]; ok {
						cached.union(paths)
					} else {
						l.unsorted[addr] = paths
					}
				}
				mux.Unlock()
			}
		})
	}
	return group.Wait()
}

func (l *locator) loadWholeFile(name string, hm batchMap) error {
	cur, err := openCursor(name)
	if err != nil {
		if errors.Is(err, errBadStream) {
			l.log.Warn("skipping file", "error", err)
			l.cfg.stats.filesSkipped.Inc()
			return nil
		}
		return err
	}
	defer cur.close()
	// No leading byte exceeds 255, so this reads the file in full.
	l.scanTo(cur, math.MaxUint8, hm)
	return nil
}

// flush resolves one batch and writes it out. The batch map is dead
// after this returns.
func (l *locator) flush(batch batchMap) error {
	result, err := resolveBatch(batch, l.log, l.cfg.stats)
	if err != nil {
		return err
	}
	if l.cfg.filter != nil {
		for addr := range result {
			if !l.cfg.filter(addr) {
				delete(result, addr)
			}
		}
	}
	if l.cfg.topOnly {
		collapseChildren(result)
	}
	return writeBatch(result, l.out)
}
