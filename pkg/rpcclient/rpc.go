package rpcclient

import (
	"math/big"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainID returns the chain identifier used for transaction signing.
func (c *Client) ChainID() (*big.Int, error) {
	var resp hexutil.Big
	if err := c.performRequest("eth_chainId", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ToInt(), nil
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber() (uint64, error) {
	var resp hexutil.Uint64
	if err := c.performRequest("eth_blockNumber", nil, &resp); err != nil {
		return 0, err
	}
	return uint64(resp), nil
}

// Call executes a message call against the latest state without creating a
// transaction and returns the raw result. from and value are optional.
func (c *Client) Call(from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	return c.call(ethrpc.NewCallArgs(from, to, data, value), ethrpc.BlockLatest)
}

// CallAtHeight is the same as Call, but uses the state at the given height.
func (c *Client) CallAtHeight(height uint64, from *common.Address, to common.Address, data []byte, value *big.Int) ([]byte, error) {
	return c.call(ethrpc.NewCallArgs(from, to, data, value), ethrpc.BlockNumber(height))
}

func (c *Client) call(args ethrpc.CallArgs, block string) ([]byte, error) {
	var resp hexutil.Bytes
	if err := c.performRequest("eth_call", []any{args, block}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// EstimateGas returns the amount of gas the given call would use.
func (c *Client) EstimateGas(args ethrpc.CallArgs) (uint64, error) {
	var resp hexutil.Uint64
	if err := c.performRequest("eth_estimateGas", []any{args}, &resp); err != nil {
		return 0, err
	}
	return uint64(resp), nil
}

// GasPrice returns the current gas price suggested by the node.
func (c *Client) GasPrice() (*big.Int, error) {
	var resp hexutil.Big
	if err := c.performRequest("eth_gasPrice", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ToInt(), nil
}

// GetBalance returns the native token balance of the account at the latest
// block.
func (c *Client) GetBalance(addr common.Address) (*big.Int, error) {
	var resp hexutil.Big
	if err := c.performRequest("eth_getBalance", []any{addr, ethrpc.BlockLatest}, &resp); err != nil {
		return nil, err
	}
	return resp.ToInt(), nil
}

// GetTransactionCount returns the number of transactions sent from the
// account, block is either a block tag or a number from ethrpc.BlockNumber.
func (c *Client) GetTransactionCount(addr common.Address, block string) (uint64, error) {
	var resp hexutil.Uint64
	if err := c.performRequest("eth_getTransactionCount", []any{addr, block}, &resp); err != nil {
		return 0, err
	}
	return uint64(resp), nil
}

// GetTransactionReceipt returns the receipt of the transaction, nil is
// returned (with no error) for transactions not yet included into a block.
func (c *Client) GetTransactionReceipt(hash common.Hash) (*ethrpc.Receipt, error) {
	var resp *ethrpc.Receipt
	if err := c.performRequest("eth_getTransactionReceipt", []any{hash}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendRawTransaction broadcasts the signed transaction and returns its hash.
func (c *Client) SendRawTransaction(tx *types.Transaction) (common.Hash, error) {
	var resp common.Hash
	data, err := tx.MarshalBinary()
	if err != nil {
		return resp, err
	}
	if err := c.performRequest("eth_sendRawTransaction", []any{hexutil.Bytes(data)}, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}
