// Command gobottleneck maps every prefix observed in a set of
// gzip-compressed TABLE_DUMP_V2 RIB snapshots to its bottleneck AS:
// the most distal AS all recorded paths to that prefix share before
// they diverge toward the origin.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	. "github.com/CSUNetSec/gobottleneck"
)

var configFile ConfigFile

func init() {
	flag.StringVar(&configFile.SortedDir, "sorted", "", "directory of RIB dumps sorted by prefix")
	flag.StringVar(&configFile.UnsortedDir, "unsorted", "", "directory of RIB dumps with no sort guarantee")
	flag.StringVar(&configFile.DestDir, "d", "", "directory to place bottleneck.<epoch>.txt in (default: cwd)")
	flag.StringVar(&configFile.Lo, "lo", "stdout", "file to place log output, or stdout/discard")
	flag.StringVar(&configFile.So, "so", "stdout", "file to place stat output, or stdout/discard")
	flag.IntVar(&configFile.BinWidth, "w", 16, "leading-byte bin width, a power of two")
	flag.IntVar(&configFile.Wc, "wc", 1, "number of workers for the unsorted file load")
	flag.StringVar(&configFile.PrefList, "prefixes", "", "comma separated prefixes; only contained addresses are emitted")
	flag.BoolVar(&configFile.TopOnly, "toponly", false, "drop resolved prefixes covered by another resolved prefix")
	flag.StringVar(&configFile.Conf, "conf", "", "YAML file to draw configuration from")
	flag.StringVar(&configFile.LogLevel, "loglevel", "info", "log level: debug, info, warn or error")
	flag.StringVar(&configFile.LogFormat, "logfmt", "text", "log format: text or json")
	flag.BoolVar(&configFile.Debug, "debug", false, "set the debug flag")
}

func main() {
	flag.Parse()
	bc, err := GetBottleneckConfig(configFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	start := time.Now()
	if err := run(bc); err != nil {
		fmt.Println(err)
		bc.CloseAll()
		os.Exit(1)
	}
	bc.SummarizeAndClose(start)
}

func run(bc *BottleneckConfig) error {
	// Bins stream into a temp file; only a completed run gets copied
	// to its timestamped destination.
	tmp, err := os.CreateTemp("", "gobottleneck")
	if err != nil {
		return fmt.Errorf("creating temp result file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := Locate(bc, tmp); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding temp result file: %w", err)
	}

	dst, err := CopyToDest(tmp, bc.DestDir())
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", dst)
	return nil
}
