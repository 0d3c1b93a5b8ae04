package testcli

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Default chain parameters reported by Node.
const (
	ChainID = 421614
	Height  = 0x10
	Nonce   = 2
	Gas     = 21000
)

// Node is a fake JSON-RPC node. Contract calls are answered with results
// registered by selector, transactions sent are included into a block
// immediately unless Pending is set.
type Node struct {
	URL string

	lock     sync.Mutex
	methods  []string
	results  map[[4]byte][]byte
	balances map[common.Address]*big.Int
	receipts map[common.Hash]*ethrpc.Receipt
	sent     []*types.Transaction
	pending  bool
	revert   bool
}

// NewNode starts a fake node, it's stopped when the test ends.
func NewNode(t *testing.T) *Node {
	n := &Node{
		results:  make(map[[4]byte][]byte),
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*ethrpc.Receipt),
	}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	n.URL = srv.URL
	return n
}

// SetResult makes eth_call with the given selector return data.
func (n *Node) SetResult(selector [4]byte, data []byte) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.results[selector] = data
}

// SetBalance sets the native currency balance of the account.
func (n *Node) SetBalance(addr common.Address, balance *big.Int) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.balances[addr] = balance
}

// SetPending makes transactions sent stay out of blocks.
func (n *Node) SetPending(pending bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.pending = pending
}

// SetReverting makes transactions sent fail on execution.
func (n *Node) SetReverting(revert bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.revert = revert
}

// Sent returns transactions received by the node.
func (n *Node) Sent() []*types.Transaction {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// Called returns the number of requests of the given method.
func (n *Node) Called(method string) int {
	n.lock.Lock()
	defer n.lock.Unlock()
	var cnt int
	for _, m := range n.methods {
		if m == method {
			cnt++
		}
	}
	return cnt
}

// ServeHTTP implements http.Handler interface.
func (n *Node) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var r struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	n.lock.Lock()
	defer n.lock.Unlock()
	n.methods = append(n.methods, r.Method)

	var (
		result any
		rpcErr *ethrpc.Error
	)
	switch r.Method {
	case "eth_chainId":
		result = hexutil.EncodeUint64(ChainID)
	case "eth_blockNumber":
		result = hexutil.EncodeUint64(Height)
	case "eth_gasPrice":
		result = "0x5f5e100"
	case "eth_estimateGas":
		result = hexutil.EncodeUint64(Gas)
	case "eth_getTransactionCount":
		result = hexutil.EncodeUint64(Nonce)
	case "eth_getBalance":
		var addr common.Address
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &addr) != nil {
			rpcErr = &ethrpc.Error{Code: ethrpc.InvalidParamsCode, Message: "invalid params"}
			break
		}
		b := n.balances[addr]
		if b == nil {
			b = new(big.Int)
		}
		result = (*hexutil.Big)(b)
	case "eth_call":
		var args ethrpc.CallArgs
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &args) != nil || len(args.Data) < 4 {
			rpcErr = &ethrpc.Error{Code: ethrpc.InvalidParamsCode, Message: "invalid params"}
			break
		}
		data, ok := n.results[[4]byte(args.Data[:4])]
		if !ok {
			rpcErr = &ethrpc.Error{Code: ethrpc.ExecutionRevertedCode, Message: "execution reverted"}
			break
		}
		result = hexutil.Bytes(data)
	case "eth_getTransactionReceipt":
		var h common.Hash
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &h) != nil {
			rpcErr = &ethrpc.Error{Code: ethrpc.InvalidParamsCode, Message: "invalid params"}
			break
		}
		result = n.receipts[h]
	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		tx := new(types.Transaction)
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &raw) != nil || tx.UnmarshalBinary(raw) != nil {
			rpcErr = &ethrpc.Error{Code: ethrpc.InvalidParamsCode, Message: "invalid transaction"}
			break
		}
		n.sent = append(n.sent, tx)
		if !n.pending {
			status := hexutil.Uint64(ethrpc.ReceiptStatusSuccessful)
			if n.revert {
				status = 0
			}
			n.receipts[tx.Hash()] = &ethrpc.Receipt{
				TxHash:      tx.Hash(),
				BlockHash:   common.Hash{0xbb},
				BlockNumber: (*hexutil.Big)(big.NewInt(Height + 1)),
				To:          tx.To(),
				GasUsed:     hexutil.Uint64(tx.Gas()),
				Status:      status,
			}
		}
		result = tx.Hash()
	default:
		rpcErr = &ethrpc.Error{Code: ethrpc.MethodNotFoundCode, Message: "method not found"}
	}

	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      r.ID,
	}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
