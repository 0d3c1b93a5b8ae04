/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abicall/abicall/cli/flags"
	"github.com/abicall/abicall/cli/input"
	"github.com/abicall/abicall/pkg/config"
	"github.com/abicall/abicall/pkg/contract"
	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/abicall/abicall/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for RPC requests that
	// require transaction awaiting. It's long enough for a few blocks to be
	// accepted on a slow chain.
	DefaultAwaitableTimeout = 2 * time.Minute
)

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// KeyPromptValue is the value of the key flag that makes the key to be read
// from the terminal.
const KeyPromptValue = "-"

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (overrides configuration and " + config.EnvEndpoint + ")",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// Contract is a set of flags describing the contract to interact with.
var Contract = []cli.Flag{
	flags.AddressFlag{
		Name:  "address, a",
		Usage: "contract address (overrides configuration and " + config.EnvAddress + ")",
	},
	cli.StringFlag{
		Name:  "abi",
		Usage: "path to the contract ABI, JSON or human-readable (overrides configuration and " + config.EnvABIPath + ")",
	},
	cli.StringFlag{
		Name:  "standard",
		Usage: "comma-separated list of standard interfaces implemented by the contract (ERC-20, WETH)",
	},
}

// Key is a flag for commands that sign transactions.
var Key = cli.StringFlag{
	Name:  "key, k",
	Usage: "path to the file with hex-encoded private key, '" + KeyPromptValue + "' to enter it (overrides configuration and " + config.EnvKeyPath + ")",
}

// ConfigFile is a flag for commands that use client configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (" + config.DefaultConfigPath + " is used if exists)",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (overrides configuration)",
}

var errNoEndpoint = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r'")
var errNoKey = errors.New("no private key specified, use option '--key' or set " + config.EnvKeyPath)

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	if !ctx.IsSet("timeout") && ctx.Bool("await") {
		dur = DefaultAwaitableTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads the configuration file given with --config-file
// (or the default one if it exists), applies environment overrides and then
// flag overrides.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		cfg = config.Default()
		err error
	)
	configFile := ctx.String("config-file")
	if configFile == "" {
		if _, statErr := os.Stat(config.DefaultConfigPath); statErr == nil {
			configFile = config.DefaultConfigPath
		}
	}
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg.ApplyEnv()

	if endpoint := ctx.String(RPCEndpointFlag); endpoint != "" {
		cfg.RPC.Endpoint = endpoint
	}
	if addr, ok := flags.AddressFromContext(ctx, "address"); ok {
		cfg.Contract.Address = addr.Hex()
	}
	if abiPath := ctx.String("abi"); abiPath != "" {
		cfg.Contract.ABIPath = abiPath
	}
	if std := ctx.String("standard"); std != "" {
		cfg.Contract.Standards = strings.Split(std, ",")
		for i := range cfg.Contract.Standards {
			cfg.Contract.Standards[i] = strings.TrimSpace(cfg.Contract.Standards[i])
		}
	}
	if key := ctx.String("key"); key != "" && key != KeyPromptValue {
		cfg.Signer.KeyPath = key
	}
	return cfg, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.Logger) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), os.ModePerm); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

// GetKey returns the signing key for the given context. It's read from the
// terminal if the key flag is '-', from the configured key file otherwise.
// nil is returned if there is no key configured.
func GetKey(ctx *cli.Context, cfg config.Config) (*keys.PrivateKey, error) {
	if ctx.String("key") == KeyPromptValue {
		raw, err := input.ReadPassword(ctx.App.Writer, "Enter private key > ")
		if err != nil {
			return nil, fmt.Errorf("error reading private key: %w", err)
		}
		return keys.NewPrivateKeyFromHex(raw)
	}
	if cfg.Signer.KeyPath == "" {
		return nil, nil
	}
	return keys.NewPrivateKeyFromFile(cfg.Signer.KeyPath)
}

// Handle is a contract with resources opened for it by GetContract.
type Handle struct {
	*contract.Contract
	Log *zap.Logger

	metrics *metrics.Service
}

// Close releases the contract and stops metrics service.
func (h *Handle) Close() {
	h.Contract.Close()
	if h.metrics != nil {
		h.metrics.ShutDown()
	}
	_ = h.Log.Sync()
}

// GetContract returns the contract handle for the given context. If needKey
// is set, the key must be configured.
func GetContract(gctx context.Context, ctx *cli.Context, needKey bool) (*Handle, cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	if cfg.RPC.Endpoint == "" {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	log, _, err := HandleLoggingParams(ctx.Bool("debug"), cfg.Logger)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	key, err := GetKey(ctx, cfg)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	if key == nil && needKey {
		return nil, cli.NewExitError(errNoKey, 1)
	}
	c, err := contract.DialWithKey(gctx, cfg, key, log)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	h := &Handle{Contract: c, Log: log}
	if cfg.Prometheus.Enabled {
		h.metrics = metrics.NewPrometheusService(cfg.Prometheus, log)
		h.metrics.Start()
	}
	return h, nil
}

// GetRPCClient returns an RPC client instance for the given context.
func GetRPCClient(gctx context.Context, ctx *cli.Context) (contract.RPCClient, cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return GetRPCClientFromConfig(gctx, cfg)
}

// GetRPCClientFromConfig returns an RPC client instance for the given
// configuration.
func GetRPCClientFromConfig(gctx context.Context, cfg config.Config) (contract.RPCClient, cli.ExitCoder) {
	if cfg.RPC.Endpoint == "" {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	if err := cfg.RPC.Validate(); err != nil {
		return nil, cli.NewExitError(fmt.Errorf("%w: RPC: %w", config.ErrConfiguration, err), 1)
	}
	c, err := contract.NewRPCClient(gctx, cfg.RPC, nil)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return c, nil
}
