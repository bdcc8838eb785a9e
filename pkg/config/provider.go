package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// noWatch is embedded by sources that never change while the process runs.
type noWatch struct{}

func (noWatch) Watch(context.Context, func()) error { return nil }
func (noWatch) Close() error                        { return nil }

// envSource marks the environment layer. The loader reads WATCHDECK_*
// variables itself; Load only merges an optional .env file into the process
// environment first.
type envSource struct {
	noWatch
	dotenv string
}

func NewEnvProvider() Source {
	return &envSource{}
}

// NewDotEnvProvider returns an environment source that first loads path.
// A missing file is not an error and variables already set win.
func NewDotEnvProvider(path string) Source {
	return &envSource{dotenv: path}
}

func (e *envSource) Load() (map[string]any, error) {
	if e.dotenv == "" {
		return nil, nil
	}
	if err := godotenv.Load(e.dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", e.dotenv, err)
	}
	return nil, nil
}

func (e *envSource) Type() SourceType { return SourceEnv }

// cliSource turns flag values, keyed by flag name, into configuration.
type cliSource struct {
	noWatch
	flags map[string]any
}

// NewCLIProvider returns the flag layer. Keys are the names in the flag tags
// of Config; other keys are ignored.
func NewCLIProvider(flags map[string]any) Source {
	return &cliSource{flags: flags}
}

func (c *cliSource) Load() (map[string]any, error) {
	paths := FlagToPath()
	k := koanf.New(".")
	for name, value := range c.flags {
		path, ok := paths[name]
		if !ok {
			continue
		}
		if err := k.Set(path, value); err != nil {
			return nil, fmt.Errorf("failed to set flag %s: %w", name, err)
		}
	}
	return k.Raw(), nil
}

func (c *cliSource) Type() SourceType { return SourceCLI }

// yamlSource reads watchdeck.yaml and reports edits to it.
type yamlSource struct {
	path string

	mu      sync.Mutex
	watcher *Watcher
}

func NewYAMLProvider(path string) Source {
	return &yamlSource{path: path}
}

// Load returns the file as a nested map. A missing file is an empty layer
// and null values are dropped so they do not clear defaults.
func (y *yamlSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", y.path, err)
	}
	return dropNulls(doc), nil
}

func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case nil:
		case map[string]any:
			if nested := dropNulls(v); len(nested) > 0 {
				out[k] = nested
			}
		default:
			out[k] = v
		}
	}
	return out
}

// Watch calls onChange after every edit of the file until ctx ends or the
// source is closed. A source is watched at most once.
func (y *yamlSource) Watch(ctx context.Context, onChange func()) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.watcher != nil {
		return fmt.Errorf("config file %s is already watched", y.path)
	}
	w, err := WatchFile(ctx, y.path, onChange)
	if err != nil {
		return err
	}
	y.watcher = w
	return nil
}

func (y *yamlSource) Type() SourceType { return SourceYAML }

func (y *yamlSource) Close() error {
	y.mu.Lock()
	w := y.watcher
	y.watcher = nil
	y.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
