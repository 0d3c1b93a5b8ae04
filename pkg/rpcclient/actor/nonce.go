package actor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/storage"
	"go.uber.org/zap"
)

// noncePrefix is the NonceStore key prefix, keys are followed by the chain ID
// and the sender address.
const noncePrefix = 0x01

// NextNonce allocates a nonce for the next transaction. The first
// allocation (and the first one after the resynchronization) takes the
// pending transaction count from the node and the value saved in the
// NonceStore (if any) and uses the largest one. Subsequent allocations only
// increment the local counter, so transactions sent in a row don't depend
// on the node's mempool state.
func (a *Actor) NextNonce() (uint64, error) {
	chainID, err := a.FetchChainID()
	if err != nil {
		return 0, err
	}

	a.nonceLock.Lock()
	defer a.nonceLock.Unlock()

	if !a.nonceSynced {
		n, err := a.client.GetTransactionCount(a.sender, ethrpc.BlockPending)
		if err != nil {
			return 0, fmt.Errorf("failed to get nonce: %w", err)
		}
		a.nonceKey = append(append([]byte{noncePrefix}, chainID.Bytes()...), a.sender.Bytes()...)
		stored, err := a.loadNonce()
		if err != nil {
			return 0, err
		}
		a.nextNonce = max(n, stored)
		a.nonceSynced = true
		a.log.Debug("nonce synchronized",
			zap.Stringer("sender", a.sender),
			zap.Uint64("remote", n),
			zap.Uint64("stored", stored))
	}
	n := a.nextNonce
	a.nextNonce++
	if err := a.saveNonce(); err != nil {
		a.nextNonce--
		return 0, err
	}
	a.log.Debug("nonce allocated", zap.Stringer("sender", a.sender), zap.Uint64("nonce", n))
	return n, nil
}

// rollbackNonce returns the nonce back if it's the last one allocated, so
// that there are no gaps.
func (a *Actor) rollbackNonce(n uint64) {
	a.nonceLock.Lock()
	defer a.nonceLock.Unlock()
	if !a.nonceSynced || a.nextNonce != n+1 {
		return
	}
	a.nextNonce = n
	if err := a.saveNonce(); err != nil {
		// Stored value is larger, next sync will pick it.
		a.nonceSynced = false
	}
	a.log.Debug("nonce returned", zap.Uint64("nonce", n))
}

// resyncNonce makes the next allocation request the nonce from the node.
func (a *Actor) resyncNonce() {
	a.nonceLock.Lock()
	a.nonceSynced = false
	a.nonceLock.Unlock()
}

func (a *Actor) loadNonce() (uint64, error) {
	if a.opts.NonceStore == nil {
		return 0, nil
	}
	v, err := a.opts.NonceStore.Get(a.nonceKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load nonce: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("failed to load nonce: invalid value length %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (a *Actor) saveNonce() error {
	if a.opts.NonceStore == nil {
		return nil
	}
	err := a.opts.NonceStore.Put(a.nonceKey, binary.BigEndian.AppendUint64(nil, a.nextNonce))
	if err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}
