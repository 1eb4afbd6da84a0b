package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// FileName is the name of the optional config file in the project root
const FileName = "pytask.toml"

// Config describes all configuration options
type Config struct {
	Package      string `default:"revpipyload" usage:"Name of the Python package"`
	EntryPoint   string `usage:"Script queried for the version (default: src/<package>)"`
	SystemPython string `usage:"System-wide interpreter (default: python3 or python from PATH)"`
	VenvRoot     string `usage:"Parent directory for the virtual environment; uses ./venv if empty"`
	Requirements string `default:"requirements.txt" usage:"Requirements installed into new virtual environments"`
	BuildDir     string `default:"build"`
	DistDir      string `default:"dist"`
	Script       string `default:"pytasks.star" usage:"Optional Starlark script with additional tasks"`
	Log          struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output JSONND instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object. Values are read from
// pytask.toml in projectRoot (if it exists) and from PYTASK_* environment variables.
func Loader(projectRoot string) (*Config, *aconfig.Loader) {
	files := []string{}
	cfgFile := filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(cfgFile); err == nil {
		files = append(files, cfgFile)
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PYTASK",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the configuration for the given project and validates it
func Load(projectRoot string) (*Config, error) {
	cfg, loader := Loader(projectRoot)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Package == "" {
		return eris.New(`Invalid value for package: must not be empty`)
	}

	if cfg.DistDir == "" || cfg.BuildDir == "" {
		return eris.New(`Invalid value for build_dir or dist_dir: must not be empty`)
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// VenvPath returns the location of the virtual environment relative to projectRoot unless VenvRoot is absolute
func (cfg *Config) VenvPath() string {
	if cfg.VenvRoot == "" {
		return "venv"
	}

	return filepath.Join(cfg.VenvRoot, cfg.Package)
}

// Entry returns the script that prints the package version
func (cfg *Config) Entry() string {
	if cfg.EntryPoint != "" {
		return cfg.EntryPoint
	}

	return filepath.Join("src", cfg.Package)
}
