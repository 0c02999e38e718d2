package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-beans/framework/kernel"
)

// Params says where configuration is read from.
type Params struct {
	// Name is the base name of the config file, without extension.
	Name string
	// Dir is searched for <Name>.toml, <Name>.yaml and <Name>.yml in that order.
	Dir string
	// EnvPrefix selects environment overrides: key "greeter.prefix" is read
	// from <EnvPrefix>_GREETER_PREFIX. Empty disables the env layers.
	EnvPrefix string
	// EnvFiles are dotenv files layered under the process environment.
	// Missing files are skipped.
	EnvFiles []string
}

// DefaultParams reads ./app.{toml,yaml,yml}, ./.env and APP_* variables.
func DefaultParams() Params {
	return Params{
		Name:      "app",
		Dir:       ".",
		EnvPrefix: "APP",
		EnvFiles:  []string{".env"},
	}
}

// Source is a read-only layered configuration. From highest to lowest
// precedence: process environment, dotenv files, the config file.
//
//	src, err := config.Load(config.DefaultParams())
//	port := src.Int("server.port", 8000)
type Source struct {
	data   map[string]any
	dotenv map[string]string
	prefix string
	file   string
}

var _ kernel.ConfigSource = (*Source)(nil)

// Load builds a Source from p. A missing config file or dotenv file is not
// an error; a file that exists but cannot be parsed is.
func Load(p Params) (*Source, error) {
	s := &Source{data: map[string]any{}, prefix: p.EnvPrefix}

	if p.Name != "" {
		dir := p.Dir
		if dir == "" {
			dir = "."
		}
		for _, ext := range []string{".toml", ".yaml", ".yml"} {
			path := filepath.Join(dir, p.Name+ext)
			data, err := readFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.data, s.file = data, path
			break
		}
	}

	if p.EnvPrefix != "" {
		dotenv, err := readDotenv(p.EnvFiles)
		if err != nil {
			return nil, err
		}
		s.dotenv = dotenv
	}
	return s, nil
}

// New returns a Source over an in-memory tree, with env overrides under
// prefix. Used by tests and by programs that build configuration in code.
func New(data map[string]any, prefix string) *Source {
	if data == nil {
		data = map[string]any{}
	}
	return &Source{data: data, prefix: prefix}
}

// File returns the config file that was loaded, empty if none.
func (s *Source) File() string { return s.file }

// Prefix returns the environment prefix.
func (s *Source) Prefix() string { return s.prefix }

// EnvName returns the variable that overrides key.
//
//	src.EnvName("greeter.prefix") // "APP_GREETER_PREFIX"
func (s *Source) EnvName(key string) string {
	if s.prefix == "" {
		return ""
	}
	name := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	return strings.ToUpper(s.prefix + "_" + name)
}

// Lookup returns the raw value for a dotted key. Values that come from the
// environment are strings; values from the file keep the type the parser
// gave them.
func (s *Source) Lookup(key string) (any, bool) {
	if v, ok := s.lookupEnv(key); ok {
		return v, true
	}
	return s.lookupFile(key)
}

func (s *Source) lookupEnv(key string) (string, bool) {
	name := s.EnvName(key)
	if name == "" {
		return "", false
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	v, ok := s.dotenv[name]
	return v, ok
}

func (s *Source) lookupFile(key string) (any, bool) {
	var cur any = s.data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Decode stores the value for key in out, which must be a pointer. It
// reports found=false when no layer has the key or the file holds an empty
// value for it. An empty or null environment value is an error unless out is
// a *string.
func (s *Source) Decode(key string, out any) (bool, error) {
	if raw, ok := s.lookupEnv(key); ok {
		return true, decodeScalar(raw, out)
	}
	v, ok := s.lookupFile(key)
	if !ok || v == nil {
		return false, nil
	}
	return true, decodeValue(v, out)
}

// ── Typed helpers ─────────────────────────────────────────────────────────────

// String returns a string value, falling back to def.
func (s *Source) String(key, def string) string {
	var v string
	if found, err := s.Decode(key, &v); !found || err != nil {
		return def
	}
	return v
}

// Int returns an int value, falling back to def when absent or invalid.
func (s *Source) Int(key string, def int) int {
	var v int
	if found, err := s.Decode(key, &v); !found || err != nil {
		return def
	}
	return v
}

// Bool returns a bool value, falling back to def when absent or invalid.
// Env values accept anything strconv.ParseBool does.
func (s *Source) Bool(key string, def bool) bool {
	if raw, ok := s.lookupEnv(key); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return def
		}
		return b
	}
	var v bool
	if found, err := s.Decode(key, &v); !found || err != nil {
		return def
	}
	return v
}

// ── helpers ───────────────────────────────────────────────────────────────────

func readFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(content, &data)
	default:
		err = yaml.Unmarshal(content, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return data, nil
}

func readDotenv(files []string) (map[string]string, error) {
	out := map[string]string{}
	// earlier files win, like godotenv.Load
	for i := len(files) - 1; i >= 0; i-- {
		values, err := godotenv.Read(files[i])
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", files[i], err)
		}
		for k, v := range values {
			out[k] = v
		}
	}
	return out, nil
}

// decodeScalar parses an environment string as YAML so that "8080" fills an
// int and "true" a bool. Strings are taken verbatim.
func decodeScalar(raw string, out any) error {
	if p, ok := out.(*string); ok {
		*p = raw
		return nil
	}
	switch strings.TrimSpace(raw) {
	case "", "~", "null", "Null", "NULL":
		return fmt.Errorf("cannot decode empty value %q into %T", raw, out)
	}
	if err := yaml.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("cannot decode %q into %T: %w", raw, out, err)
	}
	return nil
}

// decodeValue converts a parsed file value into out through a YAML
// round-trip, so nested tables fill structs with yaml tags.
func decodeValue(v any, out any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("cannot decode %v into %T: %w", v, out, err)
	}
	return nil
}
