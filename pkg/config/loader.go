package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "WATCHDECK_"

// loader layers defaults, files, the environment and flags, in that order of
// precedence, and records which layer last set each key.
type loader struct {
	loadMu   sync.Mutex
	validate *validator.Validate

	originMu sync.RWMutex
	origin   map[string]SourceType
}

// layer is one step of a load.
type layer struct {
	kind  SourceType
	apply func(k *koanf.Koanf) error
}

// NewService creates a configuration service with the watchdeck validators.
func NewService() Service {
	return &loader{
		validate: newValidator(),
		origin:   make(map[string]SourceType),
	}
}

func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	k := koanf.New(".")
	origin := make(map[string]SourceType)
	for _, ly := range l.layers(sources) {
		before := k.All()
		if err := ly.apply(k); err != nil {
			return nil, err
		}
		for key, v := range k.All() {
			if old, ok := before[key]; !ok || !reflect.DeepEqual(old, v) {
				origin[key] = ly.kind
			}
		}
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	l.originMu.Lock()
	l.origin = origin
	l.originMu.Unlock()
	return cfg, nil
}

// layers orders the sources: defaults, then YAML files, then WATCHDECK_*
// variables (after any .env file has primed them), then flags. Sources of
// the same kind apply in the order given.
func (l *loader) layers(sources []Source) []layer {
	out := []layer{{kind: SourceDefault, apply: loadDefaults}}
	var envs, flags []Source
	for _, src := range sources {
		if src == nil {
			continue
		}
		switch src.Type() {
		case SourceEnv:
			envs = append(envs, src)
		case SourceCLI:
			flags = append(flags, src)
		default:
			out = append(out, sourceLayer(src))
		}
	}
	out = append(out, layer{kind: SourceEnv, apply: func(k *koanf.Koanf) error {
		for _, src := range envs {
			if _, err := src.Load(); err != nil {
				return fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
			}
		}
		return loadEnvironment(k)
	}})
	for _, src := range flags {
		out = append(out, sourceLayer(src))
	}
	return out
}

func loadDefaults(k *koanf.Koanf) error {
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

// loadEnvironment reads the variables named in the env tags of Config.
// Other WATCHDECK_* variables are ignored.
func loadEnvironment(k *koanf.Koanf) error {
	paths := EnvToPath()
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path, ok := paths[key]
			if !ok || strings.TrimSpace(value) == "" {
				return "", nil
			}
			return path, value
		},
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func sourceLayer(src Source) layer {
	return layer{kind: src.Type(), apply: func(k *koanf.Koanf) error {
		data, err := src.Load()
		if err != nil {
			return fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
		}
		if len(data) == 0 {
			return nil
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return fmt.Errorf("failed to apply source %s: %w", src.Type(), err)
		}
		return nil
	}}
}

func decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				sensitiveStringHook,
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

func sensitiveStringHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[SensitiveString]() {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return SensitiveString(s), nil
	}
	return data, nil
}

func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", describe(err))
	}
	return nil
}

// GetSource returns the layer that set key in the last successful load.
func (l *loader) GetSource(key string) SourceType {
	l.originMu.RLock()
	defer l.originMu.RUnlock()
	if src, ok := l.origin[key]; ok {
		return src
	}
	return SourceDefault
}

// rawMap adapts the nested map of a Source to a koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
