// This file is all the code necessary to set up a bottleneck run.
// It merges command line options with an optional YAML config file,
// lists the input directories, and returns all the parameters to the
// main logic of the program.

package gobottleneck

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultBinWidth = 16

// This is a struct to store all options in. This is just convenient
// so it can be read as a YAML object with -conf.
type ConfigFile struct {
	SortedDir   string `yaml:"sortedDir"`   // dir of dumps sorted by prefix
	UnsortedDir string `yaml:"unsortedDir"` // dir of dumps with no sort guarantee
	DestDir     string `yaml:"destDir"`     // where bottleneck.<epoch>.txt goes
	Lo          string `yaml:"logOutput"`
	So          string `yaml:"statOutput"`
	Wc          int    `yaml:"workerCount"` // unsorted-load workers only
	BinWidth    int    `yaml:"binWidth"`
	PrefList    string `yaml:"prefixes,omitempty"`
	TopOnly     bool   `yaml:"topOnly"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	Conf        string `yaml:"-"` // path of the YAML file itself
	Debug       bool   `yaml:"debug"`
}

// This struct is the complete parameter set for one run.
type BottleneckConfig struct {
	workers  int
	binWidth int
	sorted   []string
	unsorted []string
	destDir  string
	filter   AddrFilter
	topOnly  bool
	log      *MultiWriteFile
	stat     *MultiWriteFile
	stats    *runStats
}

func (bc *BottleneckConfig) DestDir() string {
	return bc.destDir
}

func (bc *BottleneckConfig) SummarizeAndClose(start time.Time) {
	bc.stats.summarize(bc.stat)
	bc.stat.WriteString(fmt.Sprintf("Total time taken: %s\n", time.Since(start)))
	bc.CloseAll()
}

func (bc *BottleneckConfig) CloseAll() {
	bc.log.Close()
	bc.stat.Close()
}

func GetBottleneckConfig(configFile ConfigFile) (*BottleneckConfig, error) {
	if configFile.Conf != "" {
		if err := mergeConfigFile(&configFile); err != nil {
			return nil, err
		}
	}
	if configFile.Debug {
		configFile.LogLevel = "debug"
	}

	var bc BottleneckConfig
	bc.workers = configFile.Wc
	if bc.workers < 1 {
		bc.workers = 1
	}

	width := configFile.BinWidth
	if width == 0 {
		width = defaultBinWidth
	}
	if width < 1 || width > 256 || width&(width-1) != 0 {
		return nil, fmt.Errorf("bin width must be a power of two in [1,256], got %d", width)
	}
	bc.binWidth = width

	var err error
	bc.sorted, err = listDir(configFile.SortedDir)
	if err != nil {
		return nil, err
	}
	bc.unsorted, err = listDir(configFile.UnsortedDir)
	if err != nil {
		return nil, err
	}

	bc.destDir = configFile.DestDir
	bc.topOnly = configFile.TopOnly
	if configFile.PrefList != "" {
		bc.filter, err = NewPrefixFilter(configFile.PrefList)
		if err != nil {
			return nil, err
		}
	}

	bc.log = newWriteFile(configFile.Lo)
	bc.stat = newWriteFile(configFile.So)
	SetupLogging(bc.log, configFile.LogLevel, configFile.LogFormat)
	bc.stats = newRunStats()

	return &bc, nil
}

// mergeConfigFile overlays values from the YAML file onto the options
// gathered from flags. Keys present in the file win.
func mergeConfigFile(cf *ConfigFile) error {
	fd, err := os.Open(cf.Conf)
	if err != nil {
		return fmt.Errorf("opening config %s: %w", cf.Conf, err)
	}
	defer fd.Close()

	if err := yaml.NewDecoder(fd).Decode(cf); err != nil {
		return fmt.Errorf("parsing config %s: %w", cf.Conf, err)
	}
	return nil
}

// newWriteFile resolves an output option the way both output streams
// are resolved: "stdout" or empty means stdout, "discard" drops the
// stream, anything else is created as a file. Output to a file that
// cannot be created gets trashed rather than failing the run.
func newWriteFile(opt string) *MultiWriteFile {
	switch opt {
	case "stdout", "":
		return NewMultiWriteFile(os.Stdout)
	case "discard":
		return NewMultiWriteFile(DiscardCloser{})
	}
	fd, err := os.Create(opt)
	if err != nil {
		return NewMultiWriteFile(DiscardCloser{})
	}
	return NewMultiWriteFile(fd)
}

// listDir names every regular file in dir. These are the run's
// inputs, so a failure here aborts the run and carries the path.
func listDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, filepath.Join(dir, entry.Name()))
	}
	return names, nil
}

// Stringsources feed file names to the unsorted-load workers, so they
// MUST be thread-safe.
type stringsource interface {
	Next() (string, error)
}

// This is the normal error returned by a stringsource, indicating
// there were no failures, there are just no more strings to receive.
var EOP error = fmt.Errorf("End of paths")

// Simple wrapper for a string array, so it can be consumed
// concurrently by the unsorted-load workers.
type StringArray struct {
	pos  int
	base []string
	mux  *sync.Mutex
}

func NewStringArray(buf []string) *StringArray {
	return &StringArray{0, buf, &sync.Mutex{}}
}

func (sa *StringArray) Next() (string, error) {
	sa.mux.Lock()
	defer sa.mux.Unlock()
	if sa.pos >= len(sa.base) {
		return "", EOP
	}
	ret := sa.base[sa.pos]
	sa.pos++
	return ret, nil
}
