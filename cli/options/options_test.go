package options

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abicall/abicall/cli/input"
	"github.com/abicall/abicall/pkg/config"
	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

func newContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	for _, f := range append(append(RPC, Contract...), Key, ConfigFile, Debug) {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout)))
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})

	t.Run("await", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Bool("await", true, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		dl, _ := actualCtx.Deadline()
		require.True(t, time.Now().Add(DefaultTimeout).Before(dl))
	})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := GetConfigFromContext(newContext(t))
		require.NoError(t, err)
		require.Equal(t, config.Default(), cfg)
	})

	t.Run("file and environment", func(t *testing.T) {
		t.Setenv(config.EnvEndpoint, "http://localhost:9999")
		cfg, err := GetConfigFromContext(newContext(t, "--config-file", "../../config/abicall.yml"))
		require.NoError(t, err)
		require.Equal(t, "http://localhost:9999", cfg.RPC.Endpoint)
		require.Equal(t, []string{"WETH"}, cfg.Contract.Standards)
	})

	t.Run("flags", func(t *testing.T) {
		t.Setenv(config.EnvKeyPath, "/env/key")
		cfg, err := GetConfigFromContext(newContext(t,
			"-r", "ws://localhost:8548",
			"--address", testAddress,
			"--abi", "token.abi",
			"--standard", "ERC-20, WETH",
			"--key", "/flag/key",
		))
		require.NoError(t, err)
		require.Equal(t, "ws://localhost:8548", cfg.RPC.Endpoint)
		require.Equal(t, testAddress, cfg.Contract.Address)
		require.Equal(t, "token.abi", cfg.Contract.ABIPath)
		require.Equal(t, []string{"ERC-20", "WETH"}, cfg.Contract.Standards)
		require.Equal(t, "/flag/key", cfg.Signer.KeyPath)
	})

	t.Run("prompt keeps key path", func(t *testing.T) {
		t.Setenv(config.EnvKeyPath, "/env/key")
		cfg, err := GetConfigFromContext(newContext(t, "--key", KeyPromptValue))
		require.NoError(t, err)
		require.Equal(t, "/env/key", cfg.Signer.KeyPath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := GetConfigFromContext(newContext(t, "--config-file", filepath.Join(t.TempDir(), "none.yml")))
		require.Error(t, err)
	})
}

func TestHandleLoggingParams(t *testing.T) {
	t.Run("bad level", func(t *testing.T) {
		_, _, err := HandleLoggingParams(false, config.Logger{LogLevel: "loud"})
		require.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		log, lvl, err := HandleLoggingParams(false, config.Logger{})
		require.NoError(t, err)
		require.NotNil(t, log)
		require.Equal(t, zapcore.InfoLevel, lvl.Level())
	})

	t.Run("debug", func(t *testing.T) {
		_, lvl, err := HandleLoggingParams(true, config.Logger{LogLevel: "warn"})
		require.NoError(t, err)
		require.Equal(t, zapcore.DebugLevel, lvl.Level())
	})

	t.Run("file", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "logs", "abicall.log")
		log, lvl, err := HandleLoggingParams(false, config.Logger{LogLevel: "error", LogPath: logPath})
		require.NoError(t, err)
		require.Equal(t, zapcore.ErrorLevel, lvl.Level())
		log.Error("written")
		log.Info("skipped")
		require.NoError(t, log.Sync())

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		require.Contains(t, string(data), "written")
		require.NotContains(t, string(data), "skipped")
	})
}

func TestGetKey(t *testing.T) {
	expected, err := keys.NewPrivateKeyFromHex(testKey)
	require.NoError(t, err)

	t.Run("none", func(t *testing.T) {
		ctx := newContext(t)
		k, err := GetKey(ctx, config.Default())
		require.NoError(t, err)
		require.Nil(t, k)
	})

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Signer.KeyPath = filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(cfg.Signer.KeyPath, []byte(testKey+"\n"), 0o600))
		k, err := GetKey(newContext(t), cfg)
		require.NoError(t, err)
		require.Equal(t, expected.Address(), k.Address())
	})

	t.Run("prompt", func(t *testing.T) {
		input.Terminal = term.NewTerminal(input.ReadWriter{
			Reader: bytes.NewBufferString("0x" + testKey + "\r"),
			Writer: io.Discard,
		}, "")
		t.Cleanup(func() { input.Terminal = nil })

		k, err := GetKey(newContext(t, "--key", KeyPromptValue), config.Default())
		require.NoError(t, err)
		require.Equal(t, expected.Address(), k.Address())
	})

	t.Run("bad key", func(t *testing.T) {
		input.Terminal = term.NewTerminal(input.ReadWriter{
			Reader: bytes.NewBufferString("1234\r"),
			Writer: io.Discard,
		}, "")
		t.Cleanup(func() { input.Terminal = nil })

		_, err := GetKey(newContext(t, "-k", KeyPromptValue), config.Default())
		require.ErrorIs(t, err, keys.ErrInvalidKey)
	})
}

func TestGetRPCClient(t *testing.T) {
	t.Run("no endpoint", func(t *testing.T) {
		ctx := newContext(t)
		_, ec := GetRPCClient(t.Context(), ctx)
		require.Equal(t, 1, ec.ExitCode())
	})

	t.Run("bad endpoint", func(t *testing.T) {
		ctx := newContext(t, "-r", "ftp://localhost")
		_, ec := GetRPCClient(t.Context(), ctx)
		require.Equal(t, 1, ec.ExitCode())
	})

	t.Run("success", func(t *testing.T) {
		ctx := newContext(t, "-r", "http://localhost:8547")
		c, ec := GetRPCClient(t.Context(), ctx)
		require.Nil(t, ec)
		c.Close()
	})
}

func TestGetContract(t *testing.T) {
	t.Run("key required", func(t *testing.T) {
		ctx := newContext(t, "-r", "http://localhost:8547", "-a", testAddress, "--standard", "ERC-20")
		_, ec := GetContract(t.Context(), ctx, true)
		require.Equal(t, 1, ec.ExitCode())
	})

	t.Run("read-only", func(t *testing.T) {
		ctx := newContext(t, "-r", "http://localhost:8547", "-a", testAddress, "--standard", "ERC-20")
		h, ec := GetContract(t.Context(), ctx, false)
		require.Nil(t, ec)
		t.Cleanup(h.Close)
		require.False(t, h.CanSign())
		require.Equal(t, testAddress, h.Address().Hex())
	})

	t.Run("no ABI", func(t *testing.T) {
		ctx := newContext(t, "-r", "http://localhost:8547", "-a", testAddress)
		_, ec := GetContract(t.Context(), ctx, false)
		require.Equal(t, 1, ec.ExitCode())
	})
}
