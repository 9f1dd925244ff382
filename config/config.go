package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Config holds runtime configuration for acquisition, decoding and app behavior.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Acquisition
	Source     string `json:"source"` // auto, v4l2, gocv, screen, file, ws
	Device     string `json:"device"`
	FacingMode string `json:"facing_mode"`
	FilePath   string `json:"file_path"`
	WSURL      string `json:"ws_url"`

	// Scan loop
	TickMillis     int      `json:"tick_ms"`
	MaxBufferWidth int      `json:"max_buffer_width"`
	Formats        []string `json:"formats"`
	TryHarder      bool     `json:"try_harder"`
	RecentResults  int      `json:"recent_results"`
	StatsSeconds   int      `json:"stats_seconds"`

	// Surfaces
	Headless      bool   `json:"headless"`
	HTTPAddr      string `json:"http_addr"`
	PreviewWidth  int    `json:"preview_width"`
	PreviewHeight int    `json:"preview_height"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		Source:         "auto",
		Device:         "",
		FacingMode:     "environment",
		TickMillis:     300,
		MaxBufferWidth: 500,
		Formats:        []string{"qr"},
		TryHarder:      false,
		RecentResults:  32,
		StatsSeconds:   5,
		Headless:       false,
		HTTPAddr:       "127.0.0.1:8080",
		PreviewWidth:   400,
		PreviewHeight:  225,
	}
}

var validSources = map[string]bool{"auto": true, "v4l2": true, "gocv": true, "screen": true, "file": true, "ws": true}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if !validSources[c.Source] {
		c.Source = "auto"
	}
	switch c.FacingMode {
	case "environment", "user", "":
	default:
		c.FacingMode = "environment"
	}
	if c.TickMillis < 20 {
		c.TickMillis = 300
	}
	if c.MaxBufferWidth <= 0 {
		c.MaxBufferWidth = 500
	}
	formats := c.Formats[:0]
	for _, f := range c.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "qr" || f == "1d" {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		formats = []string{"qr"}
	}
	c.Formats = formats
	if c.RecentResults < 0 {
		c.RecentResults = 0
	}
	if c.StatsSeconds <= 0 {
		c.StatsSeconds = 5
	}
	if c.PreviewWidth < 50 {
		c.PreviewWidth = 400
	}
	if c.PreviewHeight < 50 {
		c.PreviewHeight = 225
	}
	return nil
}

// DefaultPath returns the per-user config location, falling back to the working directory.
func DefaultPath() string {
	p, err := xdg.ConfigFile(filepath.Join("qrscan", "config.json"))
	if err != nil {
		return "config.json"
	}
	return p
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Parse reads -config, loads that file and applies any flags explicitly set in args on top.
// It returns the merged config and the path it was loaded from.
func Parse(name string, args []string) (*Config, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", DefaultPath(), "Path to JSON config file")
	over := DefaultConfig()
	formats := strings.Join(over.Formats, ",")
	fs.BoolVar(&over.Debug, "debug", over.Debug, "Enable debug logging and runtime stats")
	fs.StringVar(&over.Source, "source", over.Source, "Frame source: auto, v4l2, gocv, screen, file, ws")
	fs.StringVar(&over.Device, "device", over.Device, "Camera device (e.g. /dev/video0 or index)")
	fs.StringVar(&over.FacingMode, "facing", over.FacingMode, "Preferred camera facing: environment, user or empty")
	fs.StringVar(&over.FilePath, "file", over.FilePath, "Still image used by the file source")
	fs.StringVar(&over.WSURL, "ws", over.WSURL, "WebSocket URL streaming JPEG frames")
	fs.IntVar(&over.TickMillis, "tick", over.TickMillis, "Scan period in milliseconds")
	fs.IntVar(&over.MaxBufferWidth, "max-width", over.MaxBufferWidth, "Maximum frame buffer width in pixels")
	fs.StringVar(&formats, "formats", formats, "Comma separated code formats: qr, 1d")
	fs.BoolVar(&over.TryHarder, "try-harder", over.TryHarder, "Spend more time per frame looking for codes")
	fs.BoolVar(&over.Headless, "headless", over.Headless, "Run without the GUI and serve the HTTP control API")
	fs.StringVar(&over.HTTPAddr, "http", over.HTTPAddr, "Listen address of the HTTP control API")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	cfg, err := Load(*path)
	if err != nil {
		return cfg, *path, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = over.Debug
		case "source":
			cfg.Source = over.Source
		case "device":
			cfg.Device = over.Device
		case "facing":
			cfg.FacingMode = over.FacingMode
		case "file":
			cfg.FilePath = over.FilePath
		case "ws":
			cfg.WSURL = over.WSURL
		case "tick":
			cfg.TickMillis = over.TickMillis
		case "max-width":
			cfg.MaxBufferWidth = over.MaxBufferWidth
		case "formats":
			cfg.Formats = strings.Split(formats, ",")
		case "try-harder":
			cfg.TryHarder = over.TryHarder
		case "headless":
			cfg.Headless = over.Headless
		case "http":
			cfg.HTTPAddr = over.HTTPAddr
		}
	})
	_ = cfg.Validate()
	return cfg, *path, nil
}
