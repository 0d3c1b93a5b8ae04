package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/abicall/abicall/pkg/config"
	"github.com/abicall/abicall/pkg/crypto/keys"
	"github.com/abicall/abicall/pkg/rpcclient"
	"github.com/abicall/abicall/pkg/rpcclient/actor"
	"github.com/abicall/abicall/pkg/rpcclient/invoker"
	"github.com/abicall/abicall/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RPCClient is the set of RPC methods used by contracts created with Dial
// plus some chain state queries, both rpcclient.Client and
// rpcclient.WSClient implement it.
type RPCClient interface {
	actor.RPCActor
	actor.RPCPollingWaiter
	BlockNumber() (uint64, error)
	GetBalance(addr common.Address) (*big.Int, error)
	Close()
}

// Dial creates a contract handle as described by the configuration. The key
// is read from Signer.KeyPath if it's set, otherwise the contract can only
// be queried. Configuration problems are reported with errors wrapping
// config.ErrConfiguration. The contract owns the RPC connection and the
// nonce store, so it must be closed after use.
func Dial(ctx context.Context, cfg config.Config, log *zap.Logger) (*Contract, error) {
	var key *keys.PrivateKey
	if cfg.Signer.KeyPath != "" {
		k, err := keys.NewPrivateKeyFromFile(cfg.Signer.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: Signer: %w", config.ErrConfiguration, err)
		}
		key = k
	}
	return DialWithKey(ctx, cfg, key, log)
}

// DialWithKey is the same as Dial, but uses the given key (if not nil)
// instead of the one set in the configuration.
func DialWithKey(ctx context.Context, cfg config.Config, key *keys.PrivateKey, log *zap.Logger) (*Contract, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addr, err := cfg.Contract.ParseAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: Contract: %w", config.ErrConfiguration, err)
	}
	a, err := cfg.Contract.LoadABI()
	if err != nil {
		return nil, fmt.Errorf("%w: Contract: %w", config.ErrConfiguration, err)
	}

	client, err := NewRPCClient(ctx, cfg.RPC, log)
	if err != nil {
		return nil, err
	}
	closers := []func(){client.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		reader Reader
		signer Signer
	)
	if key != nil {
		var store storage.Store
		if cfg.Signer.NonceStore.IsSet() {
			store, err = storage.NewStore(cfg.Signer.NonceStore)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("%w: Signer: nonce store: %w", config.ErrConfiguration, err)
			}
			closers = append(closers, func() {
				if err := store.Close(); err != nil {
					log.Warn("failed to close nonce store", zap.Error(err))
				}
			})
		}
		opts := actor.Options{
			GasLimit:      cfg.Signer.GasLimit,
			GasMultiplier: cfg.Signer.GasMultiplier,
			NonceStore:    store,
			PollInterval:  cfg.Signer.PollInterval,
			Logger:        log,
		}
		if cfg.Signer.GasPrice != 0 {
			opts.GasPrice = new(big.Int).SetUint64(cfg.Signer.GasPrice)
		}
		act, err := actor.New(client, key, opts)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: Signer: %w", config.ErrConfiguration, err)
		}
		log.Debug("signing enabled", zap.Stringer("sender", act.Sender()))
		reader, signer = act, act
	} else {
		reader = invoker.New(client, nil)
	}

	c, err := New(addr, a, reader, signer, Options{
		PureCacheSize: cfg.Contract.PureCacheSize,
		Logger:        log,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	c.closers = closers
	return c, nil
}

// NewRPCClient creates an RPC client for the endpoint, websocket client is
// used for "ws://" and "wss://" endpoints.
func NewRPCClient(ctx context.Context, cfg config.RPC, log *zap.Logger) (RPCClient, error) {
	opts := rpcclient.Options{
		DialTimeout:     cfg.DialTimeout,
		RequestTimeout:  cfg.RequestTimeout,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
		Logger:          log,
	}
	if rpcclient.IsWebsocketEndpoint(cfg.Endpoint) {
		c, err := rpcclient.NewWS(ctx, cfg.Endpoint, rpcclient.WSOptions{Options: opts})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := rpcclient.New(ctx, cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: RPC: %w", config.ErrConfiguration, err)
	}
	return c, nil
}
