/*
Package config contains the client configuration: RPC endpoint, contract
address and ABI, signer settings, logging and monitoring. It's loaded from
a YAML file and can be overridden by environment variables.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/abicall/abicall/pkg/manifest/standard"
	"github.com/abicall/abicall/pkg/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding configuration values.
const (
	EnvKeyPath  = "PRIV_KEY_PATH"
	EnvEndpoint = "RPC_URL"
	EnvAddress  = "STYLUS_PROGRAM_ADDRESS"
	EnvABIPath  = "ABICALL_ABI_PATH"
)

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "./config/abicall.yml"

// Default values of some settings.
const (
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultGasMultiplier  = 1.2
	DefaultPollInterval   = time.Second
)

// ErrConfiguration is returned for missing or invalid configuration values
// (endpoint, credential, contract address or ABI).
var ErrConfiguration = errors.New("invalid configuration")

// Config is the top level struct representing the client configuration.
type Config struct {
	RPC        RPC          `yaml:"RPC"`
	Contract   Contract     `yaml:"Contract"`
	Signer     Signer       `yaml:"Signer"`
	Logger     Logger       `yaml:"Logger"`
	Prometheus BasicService `yaml:"Prometheus"`
}

// Signer contains transaction signing parameters.
type Signer struct {
	// KeyPath is a path to the file with hex-encoded private key. Contract
	// is read-only if it's not set.
	KeyPath string `yaml:"KeyPath"`
	// GasPrice in wei, requested from the node for every transaction if
	// zero.
	GasPrice uint64 `yaml:"GasPrice"`
	// GasLimit for every transaction, estimated if zero.
	GasLimit uint64 `yaml:"GasLimit"`
	// GasMultiplier is applied to gas estimations.
	GasMultiplier float64 `yaml:"GasMultiplier"`
	// PollInterval is used when waiting for transactions.
	PollInterval time.Duration `yaml:"PollInterval"`
	// NonceStore keeps nonces between runs, nonces are only requested from
	// the node if not set.
	NonceStore dbconfig.DBConfiguration `yaml:"NonceStore"`
}

// Logger contains logging settings.
type Logger struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`
}

// Default returns the configuration with default values set.
func Default() Config {
	return Config{
		RPC: RPC{
			DialTimeout:    DefaultDialTimeout,
			RequestTimeout: DefaultRequestTimeout,
		},
		Signer: Signer{
			GasMultiplier: DefaultGasMultiplier,
			PollInterval:  DefaultPollInterval,
		},
		Logger: Logger{
			LogLevel: "info",
		},
	}
}

// LoadFile loads config from the provided path. Unknown fields are not
// allowed. Default values are used for missing fields.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return Config{}, fmt.Errorf("unable to load config: %w", err)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides configuration values with the ones set in the process
// environment.
func (c *Config) ApplyEnv() {
	for env, field := range map[string]*string{
		EnvKeyPath:  &c.Signer.KeyPath,
		EnvEndpoint: &c.RPC.Endpoint,
		EnvAddress:  &c.Contract.Address,
		EnvABIPath:  &c.Contract.ABIPath,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks the configuration for consistency, all errors returned
// wrap ErrConfiguration.
func (c Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("%w: RPC: %w", ErrConfiguration, err)
	}
	if err := c.Contract.Validate(); err != nil {
		return fmt.Errorf("%w: Contract: %w", ErrConfiguration, err)
	}
	if err := c.Signer.Validate(); err != nil {
		return fmt.Errorf("%w: Signer: %w", ErrConfiguration, err)
	}
	if c.Prometheus.Enabled && len(c.Prometheus.Addresses) == 0 {
		return fmt.Errorf("%w: Prometheus: no addresses", ErrConfiguration)
	}
	return nil
}

// Validate checks signer section.
func (s Signer) Validate() error {
	if s.GasMultiplier < 0 {
		return errors.New("negative GasMultiplier")
	}
	if s.PollInterval < 0 {
		return errors.New("negative PollInterval")
	}
	if st := s.NonceStore; st.IsSet() {
		switch st.Type {
		case dbconfig.BoltDB, dbconfig.LevelDB, dbconfig.InMemoryDB:
		default:
			return fmt.Errorf("unknown NonceStore type %q", st.Type)
		}
	}
	return nil
}

// Validate checks contract section.
func (c Contract) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("no address (set it in config or %s)", EnvAddress)
	}
	if _, err := c.ParseAddress(); err != nil {
		return err
	}
	if c.ABIPath == "" && len(c.Methods) == 0 && len(c.Standards) == 0 {
		return fmt.Errorf("no ABI (set ABIPath, Methods or Standards, or %s)", EnvABIPath)
	}
	for _, name := range c.Standards {
		if _, err := standard.Get(name); err != nil {
			return err
		}
	}
	if c.PureCacheSize < 0 {
		return errors.New("negative PureCacheSize")
	}
	return nil
}
