package config

// ObsConfig controls OpenTelemetry settings. Tracing and metrics stay off
// unless an OTLP endpoint is configured.
type ObsConfig struct {
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp"`
}

// Config is the process configuration of the textedit server.
type Config struct {
	// LogPath appends logs to a file instead of stderr. Stdout is never an
	// option: it carries the JSON-RPC stream.
	LogPath  string `yaml:"logPath"`
	LogLevel string `yaml:"logLevel"`

	// DefaultEncoding is used when a request omits the encoding field.
	DefaultEncoding string `yaml:"defaultEncoding"`

	// MaxFileBytes caps the size of files the engine will load. Zero
	// disables the cap.
	MaxFileBytes int64 `yaml:"maxFileBytes"`

	Obs ObsConfig `yaml:"observability"`
}
