package config

import "github.com/spf13/pflag"

// Overrides are command-line settings applied over the config file.
// Zero values leave the file's value in place.
type Overrides struct {
	ConfigPath  string
	Debug       bool
	Prompt      string
	Mesh        string
	Output      string
	Mode        string
	Provider    string
	MetricsAddr string
	Steps       int
	Save        bool
}

// Bind registers the override flags on fs.
func (o *Overrides) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&o.Prompt, "prompt", "", "Texture prompt")
	fs.StringVar(&o.Mesh, "mesh", "", "Path to the OBJ mesh")
	fs.StringVar(&o.Output, "output", "", "Output directory")
	fs.StringVar(&o.Mode, "mode", "", "View selection mode: sequential, random or heuristic")
	fs.StringVar(&o.Provider, "provider", "", "Image generator: openai or passthrough")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.IntVar(&o.Steps, "steps", 0, "Number of update steps")
	fs.BoolVar(&o.Save, "save-intermediate", false, "Write per-view diagnostic images")
}

// Apply writes the set overrides into cfg.
func (o Overrides) Apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.Prompt != "" {
		cfg.Diffusion.Prompt = o.Prompt
	}
	if o.Mesh != "" {
		cfg.Mesh.Path = o.Mesh
	}
	if o.Output != "" {
		cfg.Output.Dir = o.Output
	}
	if o.Mode != "" {
		cfg.Selection.Mode = o.Mode
	}
	if o.Provider != "" {
		cfg.Diffusion.Provider = o.Provider
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
	if o.Steps > 0 {
		cfg.Selection.UpdateSteps = o.Steps
	}
	if o.Save {
		cfg.Output.SaveIntermediate = true
	}
}
