package types

import "time"

// EngineBackend identifies how the conversion engine is launched.
type EngineBackend string

const (
	BackendCLI       EngineBackend = "cli"
	BackendContainer EngineBackend = "container"
)

// EngineConfig holds settings for reaching the external conversion engine.
type EngineConfig struct {
	// Backend selects between the docling binary on PATH and a container image.
	Backend EngineBackend `json:"backend" yaml:"backend"`

	// Binary is the docling executable name or path (default "docling").
	Binary string `json:"binary" yaml:"binary"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image"`
}

// ConversionConfig holds settings for a conversion run.
type ConversionConfig struct {
	ConversionOptions `yaml:",inline"`

	// Source is the file or directory to convert.
	Source string `json:"source" yaml:"source"`

	// Output is the root the source tree is mirrored into.
	Output string `json:"output" yaml:"output"`

	// Jobs is the number of engine invocations allowed to run at once (default 1).
	Jobs int `json:"jobs" yaml:"jobs"`

	// ExtraExtensions adds file extensions to the supported set.
	ExtraExtensions []string `json:"extra_extensions,omitempty" yaml:"extra_extensions,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LogConfig controls logger level and output format.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// WebConfig holds settings for the web front end.
type WebConfig struct {
	// Addr is the listen address (default ":8501").
	Addr string `json:"addr" yaml:"addr"`

	// MaxJobs bounds concurrently running conversion jobs (default 2).
	MaxJobs int `json:"max_jobs" yaml:"max_jobs"`

	// ArchiveDir holds zip archives produced for uploaded files.
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir"`

	// ArchiveRetention is how long finished archives are kept (default 1h).
	ArchiveRetention time.Duration `json:"archive_retention" yaml:"archive_retention"`
}

// Config groups all settings read from flags, environment, and the config file.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Web        WebConfig        `json:"web" yaml:"web"`
}
