package config

import (
	"reflect"
	"sync"
)

// Field is one leaf key of Config with the names it can be set by.
type Field struct {
	Path      string
	Env       string
	Flag      string
	Sensitive bool
}

var fields = sync.OnceValue(func() []Field {
	return walkFields(reflect.TypeFor[Config](), "")
})

// Fields lists every leaf key of Config in declaration order.
func Fields() []Field {
	return fields()
}

func walkFields(t reflect.Type, prefix string) []Field {
	var out []Field
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("koanf")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, walkFields(f.Type, path)...)
			continue
		}
		out = append(out, Field{
			Path:      path,
			Env:       f.Tag.Get("env"),
			Flag:      f.Tag.Get("flag"),
			Sensitive: f.Type == reflect.TypeFor[SensitiveString]() || f.Tag.Get("sensitive") == "true",
		})
	}
	return out
}

// EnvToPath maps environment variable names to config paths.
func EnvToPath() map[string]string {
	out := make(map[string]string)
	for _, f := range Fields() {
		if f.Env != "" {
			out[f.Env] = f.Path
		}
	}
	return out
}

// FlagToPath maps CLI flag names to config paths.
func FlagToPath() map[string]string {
	out := make(map[string]string)
	for _, f := range Fields() {
		if f.Flag != "" {
			out[f.Flag] = f.Path
		}
	}
	return out
}

// Lookup returns the field at path.
func Lookup(path string) (Field, bool) {
	for _, f := range Fields() {
		if f.Path == path {
			return f, true
		}
	}
	return Field{}, false
}
