package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config selects the logger's minimum level, entry format, and output
// destination.
type Config struct {
	// Level names the minimum severity to emit. Accepted spellings are
	// the keys of levelNames, case-insensitive.
	Level string `yaml:"level"`
	// Format is the entry format. Only "json" is produced today; the
	// field is kept so configs stay forward-compatible.
	Format string `yaml:"format"`
	// Output is "stdout", "stderr", or a file path opened for append.
	Output string `yaml:"output"`
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "json", Output: "stderr"}
}

// levelNames maps config spellings onto levels, mirroring levelRank.
var levelNames = map[string]LogLevel{
	"DEBUG": DebugLevel,
	"INFO":  InfoLevel,
	"WARN":  WarnLevel,
	"ERROR": ErrorLevel,
	"FATAL": FatalLevel,
}

// NewLogger builds a Logger from cfg. A nil cfg uses DefaultConfig; an
// unrecognized level falls back to info rather than failing startup.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, ok := levelNames[strings.ToUpper(cfg.Level)]
	if !ok {
		level = InfoLevel
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("opening log output %q: %w", cfg.Output, err)
	}
	return New(level, out), nil
}

// openOutput resolves a destination name to a writer. Anything that is
// not a process stream is treated as a file path.
func openOutput(name string) (io.Writer, error) {
	switch name {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}
}
