package logger

// FileConfig configures rotated file output.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"` // megabytes
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"` // days
	Compress   bool   `yaml:"compress"`
}

// Config selects the log level, encoding and sink.
type Config struct {
	Level    string     `yaml:"level"`    // debug, info, warn, error
	Encoding string     `yaml:"encoding"` // console or json
	Mode     string     `yaml:"mode"`     // stdout or file
	File     FileConfig `yaml:"file"`
}
