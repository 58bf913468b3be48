package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/exitcodes"
	"github.com/ipfs-force-community/venus-fvm/pkg/vm/gas"
)

// Config is an in memory representation of the configuration file of the execution core.
type Config struct {
	VM        *VMConfig           `toml:"vm"`
	Pricing   *gas.Pricelist      `toml:"pricing"`
	ExitCodes *exitcodes.Taxonomy `toml:"exitCodes"`
	Datastore *DatastoreConfig    `toml:"datastore"`
	Log       *LogConfig          `toml:"log"`
	Metrics   *MetricsConfig      `toml:"metrics"`
	Tracing   *TracingConfig      `toml:"tracing"`
}

// VMConfig holds the parameters of machines and call managers.
type VMConfig struct {
	NetworkVersion  uint64 `toml:"networkVersion"`
	MaxCallDepth    int    `toml:"maxCallDepth"`
	ModuleCacheSize int    `toml:"moduleCacheSize"`
	// Tracing records every gas charge of a message in its ApplyRet.
	Tracing bool `toml:"tracing"`
}

func newDefaultVMConfig() *VMConfig {
	return &VMConfig{
		NetworkVersion:  uint64(constants.TestNetworkVersion),
		MaxCallDepth:    constants.MaxCallDepth,
		ModuleCacheSize: 256,
	}
}

// Version returns the configured network version.
func (cfg *VMConfig) Version() network.Version {
	return network.Version(cfg.NetworkVersion)
}

// DatastoreConfig holds all the configuration options for the datastore.
type DatastoreConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

func newDefaultDatastoreConfig() *DatastoreConfig {
	return &DatastoreConfig{
		Type: "badger",
		Path: "badger",
	}
}

// LogConfig sets the level of the loggers.
type LogConfig struct {
	Level      string            `toml:"level"`
	Subsystems map[string]string `toml:"subsystems"`
}

func newDefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:      "info",
		Subsystems: map[string]string{},
	}
}

// Apply sets the global level and then the level of every listed subsystem.
func (cfg *LogConfig) Apply() error {
	lvl, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	logging.SetAllLoggers(lvl)
	for name, level := range cfg.Subsystems {
		if err := logging.SetLogLevel(name, level); err != nil {
			return errors.Wrapf(err, "set level of %s", name)
		}
	}
	return nil
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
}

func newDefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:   false,
		Address:   "127.0.0.1:9400",
		Namespace: "fvm",
	}
}

// TracingConfig holds the jaeger exporter settings for the spans of message execution.
type TracingConfig struct {
	JaegerTracingEnabled bool    `toml:"jaegerTracingEnabled"`
	ProbabilitySampler   float64 `toml:"probabilitySampler"`
	JaegerEndpoint       string  `toml:"jaegerEndpoint"`
	ServerName           string  `toml:"serverName"`
}

func newDefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		JaegerTracingEnabled: false,
		ProbabilitySampler:   1.0,
		JaegerEndpoint:       "localhost:6831",
		ServerName:           "venus-fvm",
	}
}

// NewDefaultConfig returns a config object with all the fields filled out to
// their default values
func NewDefaultConfig() *Config {
	return &Config{
		VM:        newDefaultVMConfig(),
		Pricing:   gas.NewDefaultPricelist(),
		ExitCodes: exitcodes.NewDefaultTaxonomy(),
		Datastore: newDefaultDatastoreConfig(),
		Log:       newDefaultLogConfig(),
		Metrics:   newDefaultMetricsConfig(),
		Tracing:   newDefaultTracingConfig(),
	}
}

// Validate reports every invalid setting of the config.
func (cfg *Config) Validate() error {
	var result *multierror.Error
	if cfg.VM == nil || cfg.Pricing == nil || cfg.ExitCodes == nil || cfg.Datastore == nil || cfg.Log == nil || cfg.Metrics == nil || cfg.Tracing == nil {
		return fmt.Errorf("config is missing a section")
	}
	if cfg.VM.MaxCallDepth < 1 {
		result = multierror.Append(result, fmt.Errorf("vm.maxCallDepth must be at least 1, got %d", cfg.VM.MaxCallDepth))
	}
	if cfg.VM.ModuleCacheSize < 1 {
		result = multierror.Append(result, fmt.Errorf("vm.moduleCacheSize must be at least 1, got %d", cfg.VM.ModuleCacheSize))
	}
	if err := cfg.Pricing.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "pricing"))
	}
	if err := cfg.ExitCodes.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "exitCodes"))
	}
	switch cfg.Datastore.Type {
	case "memory", "badger", "badgerds":
	default:
		result = multierror.Append(result, fmt.Errorf("datastore.type %q is not one of memory, badger", cfg.Datastore.Type))
	}
	if _, err := logging.LevelFromString(cfg.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level %q: %w", cfg.Log.Level, err))
	}
	if p := cfg.Tracing.ProbabilitySampler; p < 0 || p > 1 {
		result = multierror.Append(result, fmt.Errorf("tracing.probabilitySampler must be within [0, 1], got %v", p))
	}
	if cfg.Tracing.JaegerTracingEnabled && cfg.Tracing.JaegerEndpoint == "" {
		result = multierror.Append(result, fmt.Errorf("tracing.jaegerEndpoint is required when tracing is enabled"))
	}
	return result.ErrorOrNil()
}

// WriteFile writes the config to the given filepath.
func (cfg *Config) WriteFile(file string) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(*cfg); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// ReadFile reads a config file from disk. Settings absent from the file keep their defaults.
func ReadFile(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	cfg := NewDefaultConfig()
	if _, err := toml.DecodeReader(f, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// field resolves a dotted key such as "pricing.sendBase" or "exitCodes.fatal.0" to the
// settable value it names. Sections are matched by their toml tag; list elements by index.
func (cfg *Config) field(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, fmt.Errorf("empty config key")
	}
	v := reflect.ValueOf(cfg).Elem()
	parts := strings.Split(key, ".")
	for n, part := range parts {
		if n > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("config key %s: section %s is not set", key, strings.Join(parts[:n], "."))
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Struct:
			next, ok := structField(v, part)
			if !ok {
				return reflect.Value{}, fmt.Errorf("config key %s: no setting %q in %s", key, part, sectionName(parts[:n]))
			}
			v = next
		case reflect.Slice, reflect.Array:
			idx, err := strconv.ParseUint(part, 10, 0)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("config key %s: %q is not a list index", key, part)
			}
			if int(idx) >= v.Len() {
				return reflect.Value{}, fmt.Errorf("config key %s: index %d out of range, list has %d entries", key, idx, v.Len())
			}
			v = v.Index(int(idx))
		default:
			return reflect.Value{}, fmt.Errorf("config key %s: %s is a single value", key, strings.Join(parts[:n], "."))
		}
	}
	return v, nil
}

func structField(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if name == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func sectionName(parts []string) string {
	if len(parts) == 0 {
		return "the config root"
	}
	return strings.Join(parts, ".")
}

// decodeValue parses tomlVal as a value of type t. Sections accept either their body as it
// appears under the section header or an inline table; everything else is a plain toml value.
func decodeValue(key, tomlVal string, t reflect.Type) (reflect.Value, error) {
	target := t
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}

	tomlVal = strings.TrimSpace(tomlVal)
	out := reflect.New(target)
	if target.Kind() == reflect.Struct && !strings.HasPrefix(tomlVal, "{") {
		// a section body replaces the whole section, omitted keys are zero
		if _, err := toml.Decode(tomlVal, out.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "value for section %s", key)
		}
	} else {
		holder := reflect.New(reflect.StructOf([]reflect.StructField{{
			Name: "Value",
			Type: target,
			Tag:  `toml:"value"`,
		}}))
		if _, err := toml.Decode("value = "+tomlVal, holder.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "value for %s", key)
		}
		out.Elem().Set(holder.Elem().Field(0))
	}

	if t.Kind() == reflect.Ptr {
		return out, nil
	}
	return out.Elem(), nil
}

// Set replaces the setting or section named by key, e.g. "vm.maxCallDepth" or "datastore",
// with tomlVal. Lists of tables must use inline tables. The config is left unchanged when the
// value cannot be parsed or makes it invalid.
func (cfg *Config) Set(key string, tomlVal string) (interface{}, error) {
	v, err := cfg.field(key)
	if err != nil {
		return nil, err
	}
	val, err := decodeValue(key, tomlVal, v.Type())
	if err != nil {
		return nil, err
	}

	prev := reflect.New(v.Type()).Elem()
	prev.Set(v)
	v.Set(val)
	if err := cfg.Validate(); err != nil {
		v.Set(prev)
		return nil, errors.Wrapf(err, "setting %s", key)
	}
	return v.Interface(), nil
}

// Get returns the setting or section named by key, e.g. "pricing.storageGasMulti".
func (cfg *Config) Get(key string) (interface{}, error) {
	v, err := cfg.field(key)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}
