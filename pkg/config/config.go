package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/devantler-tech/standalone/pkg/k8s"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Each key is also a flag name; its environment variable is the
// upper-cased key with dashes replaced by underscores.
const (
	KeyClusterName  = "cluster-name"
	KeyDomain       = "domain"
	KeyToolsDir     = "tools-dir"
	KeyCertsDir     = "certs-dir"
	KeyDataDir      = "data-dir"
	KeyHTTPPort     = "http-port"
	KeyHTTPSPort    = "https-port"
	KeyRegistryName = "registry-name"
	KeyTimeout      = "timeout"
	KeyKubeconfig   = "kubeconfig"
)

// Defaults.
const (
	DefaultClusterName  = "standalone-cluster"
	DefaultDomain       = "127-0-0-1.sslip.io"
	DefaultToolsDir     = "./tools"
	DefaultCertsDir     = "./certs"
	DefaultDataDir      = "./data"
	DefaultHTTPPort     = 8080
	DefaultHTTPSPort    = 8443
	DefaultRegistryName = "standalone-registry"
	DefaultTimeout      = 5 * time.Minute

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

const maxPort = 65535

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the resolved settings for one invocation.
type Config struct {
	ClusterName  string        `mapstructure:"cluster-name"`
	Domain       string        `mapstructure:"domain"`
	ToolsDir     string        `mapstructure:"tools-dir"`
	CertsDir     string        `mapstructure:"certs-dir"`
	DataDir      string        `mapstructure:"data-dir"`
	HTTPPort     int           `mapstructure:"http-port"`
	HTTPSPort    int           `mapstructure:"https-port"`
	RegistryName string        `mapstructure:"registry-name"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Kubeconfig   string        `mapstructure:"kubeconfig"`
}

// EnvVar returns the environment variable bound to key.
func EnvVar(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func defaults() map[string]any {
	return map[string]any{
		KeyClusterName:  DefaultClusterName,
		KeyDomain:       DefaultDomain,
		KeyToolsDir:     DefaultToolsDir,
		KeyCertsDir:     DefaultCertsDir,
		KeyDataDir:      DefaultDataDir,
		KeyHTTPPort:     DefaultHTTPPort,
		KeyHTTPSPort:    DefaultHTTPSPort,
		KeyRegistryName: DefaultRegistryName,
		KeyTimeout:      DefaultTimeout,
		KeyKubeconfig:   k8s.DefaultKubeconfigPath(),
	}
}

// AddFlags registers one flag per configuration key on flags.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(KeyClusterName, DefaultClusterName, "name of the k3d cluster")
	flags.String(KeyDomain, DefaultDomain, "wildcard DNS domain resolving to 127.0.0.1")
	flags.String(KeyToolsDir, DefaultToolsDir, "directory holding the downloaded binaries")
	flags.String(KeyCertsDir, DefaultCertsDir, "directory receiving the leaf certificate and key")
	flags.String(KeyDataDir, DefaultDataDir, "host directory mounted into the cluster at /data")
	flags.Int(KeyHTTPPort, DefaultHTTPPort, "first host port tried for HTTP ingress")
	flags.Int(KeyHTTPSPort, DefaultHTTPSPort, "first host port tried for HTTPS ingress")
	flags.String(KeyRegistryName, DefaultRegistryName, "name of the cluster-local image registry")
	flags.Duration(KeyTimeout, DefaultTimeout, "bound for each readiness wait")
	flags.String(KeyKubeconfig, k8s.DefaultKubeconfigPath(), "kubeconfig merged with the cluster context")
}

type options struct {
	envFile string
}

// Option customises Load.
type Option func(*options)

// WithEnvFile reads dotenv values from path instead of DefaultEnvFile. An empty path
// disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// Load resolves a Config. flags may be nil. Flags only take effect when set explicitly.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	o := options{envFile: DefaultEnvFile}
	for _, opt := range opts {
		opt(&o)
	}

	viperInstance := viper.New()

	for key, value := range defaults() {
		viperInstance.SetDefault(key, value)
	}

	// .env sits between the built-in defaults and the real environment.
	dotenv, err := readEnvFile(o.envFile)
	if err != nil {
		return nil, err
	}

	for key := range defaults() {
		value, ok := dotenv[EnvVar(key)]
		if ok {
			viperInstance.SetDefault(key, value)
		}

		err = viperInstance.BindEnv(key, EnvVar(key))
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if flags != nil {
		err = viperInstance.BindPFlags(flags)
		if err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config

	err = viperInstance.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	// KUBECONFIG may list several files; k3d merges into the first.
	paths := filepath.SplitList(cfg.Kubeconfig)
	if len(paths) > 0 {
		cfg.Kubeconfig = paths[0]
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return values, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []error

	if strings.TrimSpace(c.ClusterName) == "" {
		problems = append(problems, fmt.Errorf("%s must not be empty", KeyClusterName))
	}

	if strings.TrimSpace(c.Domain) == "" {
		problems = append(problems, fmt.Errorf("%s must not be empty", KeyDomain))
	}

	if c.HTTPPort < 1 || c.HTTPPort > maxPort {
		problems = append(problems, fmt.Errorf("%s %d out of range 1..%d", KeyHTTPPort, c.HTTPPort, maxPort))
	}

	if c.HTTPSPort < 1 || c.HTTPSPort > maxPort {
		problems = append(problems, fmt.Errorf("%s %d out of range 1..%d", KeyHTTPSPort, c.HTTPSPort, maxPort))
	}

	if c.Timeout <= 0 {
		problems = append(problems, fmt.Errorf("%s must be positive, got %s", KeyTimeout, c.Timeout))
	}

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}
