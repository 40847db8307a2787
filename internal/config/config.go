package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the project directory.
const FileName = ".cwrap.yaml"

// Conventions are the naming rules the extractor relies on.
type Conventions struct {
	// RecordSuffix marks C record types, e.g. "_t".
	RecordSuffix string `mapstructure:"record_suffix" yaml:"recordSuffix"`
	// StructSuffix marks raw struct tags that normalize to RecordSuffix, e.g. "_stct".
	StructSuffix string `mapstructure:"struct_suffix" yaml:"structSuffix"`
	// ClientdType is the untyped context pointer of the clientd convention.
	ClientdType string `mapstructure:"clientd_type" yaml:"clientdType"`
	// StatusType is the integer error-code return type.
	StatusType string `mapstructure:"status_type" yaml:"statusType"`
	// CStringType is the NUL-terminated string type.
	CStringType string `mapstructure:"cstring_type" yaml:"cstringType"`
	// AsyncMarker identifies two-phase asynchronous operation handles.
	AsyncMarker string `mapstructure:"async_marker" yaml:"asyncMarker"`
}

// Emit holds the generator flags.
type Emit struct {
	Package            string   `mapstructure:"package" yaml:"package"`
	Preamble           []string `mapstructure:"preamble" yaml:"preamble"`
	RuntimeSupport     bool     `mapstructure:"runtime_support" yaml:"runtimeSupport"`
	LintDirectives     bool     `mapstructure:"lint_directives" yaml:"lintDirectives"`
	ConvertStatusCodes bool     `mapstructure:"convert_status_codes" yaml:"convertStatusCodes"`
}

// Config is the complete cwrap configuration.
type Config struct {
	Conventions Conventions `mapstructure:"conventions" yaml:"conventions"`
	// DenyList holds type-name prefixes of subsystems that do not follow the
	// init/close conventions and are wrapped by hand.
	DenyList []string `mapstructure:"deny_list" yaml:"denyList"`
	// Owners forces the owning wrapper of a function: fn name -> type name.
	Owners map[string]string `mapstructure:"owners" yaml:"owners"`
	// ClosePairs forces the close function of an initializer: init -> close.
	ClosePairs map[string]string `mapstructure:"close_pairs" yaml:"closePairs"`
	Emit       Emit              `mapstructure:"emit" yaml:"emit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Conventions: Conventions{
			RecordSuffix: "_t",
			StructSuffix: "_stct",
			ClientdType:  "unsafe.Pointer",
			StatusType:   "C.int",
			CStringType:  "*C.char",
			AsyncMarker:  "_async_",
		},
		DenyList: []string{
			"aeron_thread",
			"aeron_command",
			"aeron_executor",
			"aeron_name_resolver",
		},
		Owners:     map[string]string{},
		ClosePairs: map[string]string{},
		Emit: Emit{
			Package:            "bindings",
			RuntimeSupport:     true,
			LintDirectives:     true,
			ConvertStatusCodes: true,
		},
	}
}

// Denied reports whether a type name falls under the deny-list.
func (c *Config) Denied(typeName string) bool {
	for _, prefix := range c.DenyList {
		if strings.HasPrefix(typeName, prefix) {
			return true
		}
	}
	return false
}

// Load reads FileName from projectPath, or the explicit file when configFile
// is set, on top of the defaults. CWRAP_* environment variables override
// file values.
func Load(projectPath, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("cwrap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		path := filepath.Join(projectPath, FileName)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("conventions.record_suffix", d.Conventions.RecordSuffix)
	v.SetDefault("conventions.struct_suffix", d.Conventions.StructSuffix)
	v.SetDefault("conventions.clientd_type", d.Conventions.ClientdType)
	v.SetDefault("conventions.status_type", d.Conventions.StatusType)
	v.SetDefault("conventions.cstring_type", d.Conventions.CStringType)
	v.SetDefault("conventions.async_marker", d.Conventions.AsyncMarker)
	v.SetDefault("deny_list", d.DenyList)
	v.SetDefault("owners", d.Owners)
	v.SetDefault("close_pairs", d.ClosePairs)
	v.SetDefault("emit.package", d.Emit.Package)
	v.SetDefault("emit.preamble", d.Emit.Preamble)
	v.SetDefault("emit.runtime_support", d.Emit.RuntimeSupport)
	v.SetDefault("emit.lint_directives", d.Emit.LintDirectives)
	v.SetDefault("emit.convert_status_codes", d.Emit.ConvertStatusCodes)
}

func (c *Config) validate() error {
	if c.Conventions.RecordSuffix == "" {
		return errors.New("conventions.record_suffix must not be empty")
	}
	if c.Conventions.ClientdType == "" {
		return errors.New("conventions.clientd_type must not be empty")
	}
	if c.Emit.Package == "" {
		return errors.New("emit.package must not be empty")
	}
	if c.Owners == nil {
		c.Owners = map[string]string{}
	}
	if c.ClosePairs == nil {
		c.ClosePairs = map[string]string{}
	}
	return nil
}
