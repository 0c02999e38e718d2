package kernel

// ConfigSource is the configuration collaborator consumed by initializers.
// Decode reports found=false when the key is absent, and an error when the
// value exists but cannot be decoded into out.
type ConfigSource interface {
	Decode(key string, out any) (found bool, err error)
}

// NoConfig is a ConfigSource with no values.
type NoConfig struct{}

func (NoConfig) Decode(string, any) (bool, error) { return false, nil }

// InitContext is handed to every Initializer: the init token, the
// configuration source, and the key of the entry being built.
type InitContext struct {
	token  *InitToken
	config ConfigSource
	key    Key
}

// Token returns the init token that authorizes Place.Initialize.
func (c *InitContext) Token() *InitToken { return c.token }

// Key returns the key of the entry being initialized.
func (c *InitContext) Key() Key { return c.key }

func (c *InitContext) Decode(key string, out any) (bool, error) {
	if c.config == nil {
		return false, nil
	}
	return c.config.Decode(key, out)
}

// GetValue decodes a required configuration value.
//
//	name, err := kernel.GetValue[string](ctx, "greeter.name")
func GetValue[T any](src ConfigSource, key string) (T, error) {
	var v T
	found, err := src.Decode(key, &v)
	if err != nil {
		return v, &ConfigError{Key: key, Err: err}
	}
	if !found {
		return v, &ConfigError{Key: key, Err: errValueMissing}
	}
	return v, nil
}

// GetValueOr decodes an optional configuration value, returning def when
// the key is absent. A present but malformed value is still an error.
//
//	prefix, err := kernel.GetValueOr(ctx, "greeter.prefix", "hello")
func GetValueOr[T any](src ConfigSource, key string, def T) (T, error) {
	var v T
	found, err := src.Decode(key, &v)
	if err != nil {
		return def, &ConfigError{Key: key, Err: err}
	}
	if !found {
		return def, nil
	}
	return v, nil
}
