package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// PollingWaiterRetryCount is a threshold for a number of subsequent failed
// attempts to get the receipt from the RPC server. If it fails to retrieve
// it PollingWaiterRetryCount times in a row then transaction awaiting
// attempt is considered to be failed and an error is returned.
const PollingWaiterRetryCount = 3

var (
	// ErrContextDone is returned when the context has been done in the
	// middle of transaction awaiting process and no result was received yet.
	ErrContextDone = errors.New("waiter context done")
	// ErrAwaitingNotSupported is returned from Wait if the RPC client
	// can't get transaction receipts.
	ErrAwaitingNotSupported = errors.New("awaiting not supported")
	// ErrExecutionFailed is returned along with the receipt of a transaction
	// that was included into a block, but failed (reverted).
	ErrExecutionFailed = errors.New("transaction execution failed")
)

// RPCPollingWaiter is an interface that enables transaction awaiting
// functionality for Actor based on periodical receipt polls.
type RPCPollingWaiter interface {
	GetTransactionReceipt(hash common.Hash) (*ethrpc.Receipt, error)
}

// Wait polls the node until the transaction is included into a block and
// returns its receipt. If the transaction has failed, the receipt is
// returned along with ErrExecutionFailed. Wait is not used by SendCall, it
// only returns when the transaction is accepted to the chain or ctx is done.
func (a *Actor) Wait(ctx context.Context, h common.Hash) (*ethrpc.Receipt, error) {
	pw, ok := a.client.(RPCPollingWaiter)
	if !ok {
		return nil, ErrAwaitingNotSupported
	}
	return PollReceipt(ctx, pw, h, a.opts.PollInterval, a.log)
}

// PollReceipt requests the receipt of the transaction every pollInterval
// until it's available, see Actor.Wait. log can be nil.
func PollReceipt(ctx context.Context, pw RPCPollingWaiter, h common.Hash, pollInterval time.Duration, log *zap.Logger) (*ethrpc.Receipt, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		retries int
		ticker  = time.NewTicker(pollInterval)
	)
	defer ticker.Stop()
	for {
		rcpt, err := pw.GetTransactionReceipt(h)
		switch {
		case err != nil:
			retries++
			if retries >= PollingWaiterRetryCount {
				return nil, fmt.Errorf("failed to get receipt of %s: %w", h, err)
			}
		case rcpt != nil:
			log.Debug("transaction accepted",
				zap.Stringer("hash", h),
				zap.Uint64("status", uint64(rcpt.Status)))
			if !rcpt.Succeeded() {
				return rcpt, ErrExecutionFailed
			}
			return rcpt, nil
		default:
			retries = 0
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		case <-ticker.C:
		}
	}
}
