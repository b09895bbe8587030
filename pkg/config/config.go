// Package config loads t4gen project files and applies them to a template
// host.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/t4gen/pkg/host"
	"github.com/walteh/t4gen/pkg/settings"
)

var (
	ErrNotFound         = errors.Base("no t4gen config file found")
	ErrInvalidParameter = errors.Base("invalid parameter")
	ErrInvalidFallback  = errors.Base("invalid pragma base fallback")
)

// FileNames are the config file names looked up by Find, in order.
var FileNames = []string{"t4gen.yaml", "t4gen.yml", "t4gen.hcl"}

type Config struct {
	// Templates are doublestar globs, relative to the config file.
	Templates      []string `yaml:"templates" hcl:"templates,optional"`
	IncludePaths   []string `yaml:"include_paths,omitempty" hcl:"include_paths,optional"`
	ReferencePaths []string `yaml:"reference_paths,omitempty" hcl:"reference_paths,optional"`

	LinePragmas *LinePragmaConfig `yaml:"line_pragmas,omitempty" hcl:"line_pragmas,block"`

	OutputExtension string `yaml:"output_extension,omitempty" hcl:"output_extension,optional"`
	OutputEncoding  string `yaml:"output_encoding,omitempty" hcl:"output_encoding,optional"`

	// Parameters use the "name=value" or "processor!directive!name!value"
	// forms.
	Parameters []string `yaml:"parameters,omitempty" hcl:"parameters,optional"`

	Processors []*ProcessorEntry `yaml:"processors,omitempty" hcl:"processor,block"`

	// dir is where the config was loaded from.
	dir string
}

type LinePragmaConfig struct {
	Relative      bool   `yaml:"relative,omitempty" hcl:"relative,optional"`
	BaseDirectory string `yaml:"base_directory,omitempty" hcl:"base_directory,optional"`
	// Fallback is "root" or "segment".
	Fallback string `yaml:"fallback,omitempty" hcl:"fallback,optional"`
}

// ProcessorEntry declares an external directive processor.
type ProcessorEntry struct {
	Name     string `yaml:"name" hcl:"name,label"`
	Type     string `yaml:"type" hcl:"type,attr"`
	Assembly string `yaml:"assembly" hcl:"assembly,attr"`
}

// New returns an empty config rooted at dir.
func New(dir string) *Config {
	return &Config{dir: dir}
}

// Dir is the directory the config was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// Find returns the first config file in dir named by FileNames.
func Find(fs afero.Fs, dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, path); ok {
			return path, nil
		}
	}
	return "", errors.WithDetails(ErrNotFound, "dir", dir)
}

// Load reads a YAML or HCL config file. HCL files can reference the process
// environment as env.NAME.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg *Config
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		cfg, err = decodeYAML(data)
	} else {
		cfg, err = decodeHCL(data, path, environment())
	}
	if err != nil {
		return nil, err
	}

	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

func decodeHCL(data []byte, path string, env map[string]string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &cfg); diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &cfg, nil
}

func environment() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env
}

// resolve makes p absolute against the config directory.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Apply configures g from c. Relative paths are taken against the config
// file's directory.
func (c *Config) Apply(g *host.TemplateGenerator) error {
	for _, p := range c.IncludePaths {
		g.IncludePaths = append(g.IncludePaths, c.resolve(p))
	}
	for _, p := range c.ReferencePaths {
		g.ReferencePaths = append(g.ReferencePaths, c.resolve(p))
	}

	if lp := c.LinePragmas; lp != nil {
		g.UseRelativeLinePragmas = lp.Relative
		g.RelativeLinePragmasBaseDirectory = c.resolve(lp.BaseDirectory)
		fallback, ok := settings.ParsePragmaBaseFallback(lp.Fallback)
		if !ok {
			return errors.Errorf("%w: '%s'", ErrInvalidFallback, lp.Fallback)
		}
		g.PragmaBaseFallback = fallback
	}

	if c.OutputExtension != "" {
		g.DefaultExtension = c.OutputExtension
	}
	if c.OutputEncoding != "" {
		g.DefaultEncoding = c.OutputEncoding
	}

	for _, p := range c.Parameters {
		if !g.TryAddParameter(p) {
			return errors.Errorf("%w: '%s'", ErrInvalidParameter, p)
		}
	}

	for _, p := range c.Processors {
		g.AddDirectiveProcessor(p.Name, p.Type, p.Assembly)
	}
	return nil
}

// TemplateGlobs returns the template globs relative to the config directory,
// or the default when none are configured.
func (c *Config) TemplateGlobs() []string {
	if len(c.Templates) == 0 {
		return []string{"**/*.tt"}
	}
	return c.Templates
}
