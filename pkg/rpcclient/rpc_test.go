package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcClientTestCase struct {
	name           string
	invoke         func(c *Client) (any, error)
	serverResponse string
	// params is the expected JSON of request parameters, not checked if
	// empty.
	params string
	result func(c *Client) any
}

var (
	testContract = common.HexToAddress("0xC4CA13280b8EafD7A033670E620B1AF74950E147")
	testSender   = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	testTxHash   = common.HexToHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")
	testTx       = types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(10), Gas: 21000, To: &testContract})
)

var rpcClientTestCases = map[string][]rpcClientTestCase{
	"eth_chainId": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.ChainID()
			},
			serverResponse: `"result":"0x66eed"`,
			params:         `[]`,
			result: func(c *Client) any {
				return big.NewInt(421613)
			},
		},
	},
	"eth_blockNumber": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.BlockNumber()
			},
			serverResponse: `"result":"0x4b7"`,
			result: func(c *Client) any {
				return uint64(1207)
			},
		},
	},
	"eth_call": {
		{
			name: "latest",
			invoke: func(c *Client) (any, error) {
				return c.Call(nil, testContract, []byte{0x31, 0x3c, 0xe5, 0x67}, nil)
			},
			serverResponse: `"result":"0x0000000000000000000000000000000000000000000000000000000000000012"`,
			params:         `[{"to":"0xc4ca13280b8eafd7a033670e620b1af74950e147","data":"0x313ce567"},"latest"]`,
			result: func(c *Client) any {
				return append(make([]byte, 31), 0x12)
			},
		},
		{
			name: "at height with sender and value",
			invoke: func(c *Client) (any, error) {
				return c.CallAtHeight(16, &testSender, testContract, []byte{1}, big.NewInt(255))
			},
			serverResponse: `"result":"0x"`,
			params: `[{"from":"0x2c7536e3605d9c16a7a3d7b1898e529396a65c23","to":"0xc4ca13280b8eafd7a033670e620b1af74950e147",` +
				`"value":"0xff","data":"0x01"},"0x10"]`,
			result: func(c *Client) any {
				return []byte{}
			},
		},
	},
	"eth_estimateGas": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.EstimateGas(ethrpc.NewCallArgs(&testSender, testContract, nil, nil))
			},
			serverResponse: `"result":"0x5208"`,
			params:         `[{"from":"0x2c7536e3605d9c16a7a3d7b1898e529396a65c23","to":"0xc4ca13280b8eafd7a033670e620b1af74950e147"}]`,
			result: func(c *Client) any {
				return uint64(21000)
			},
		},
	},
	"eth_gasPrice": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.GasPrice()
			},
			serverResponse: `"result":"0x5f5e100"`,
			result: func(c *Client) any {
				return big.NewInt(100000000)
			},
		},
	},
	"eth_getBalance": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.GetBalance(testSender)
			},
			serverResponse: `"result":"0xde0b6b3a7640000"`,
			params:         `["0x2c7536e3605d9c16a7a3d7b1898e529396a65c23","latest"]`,
			result: func(c *Client) any {
				return big.NewInt(1000000000000000000)
			},
		},
	},
	"eth_getTransactionCount": {
		{
			name: "pending",
			invoke: func(c *Client) (any, error) {
				return c.GetTransactionCount(testSender, ethrpc.BlockPending)
			},
			serverResponse: `"result":"0x7"`,
			params:         `["0x2c7536e3605d9c16a7a3d7b1898e529396a65c23","pending"]`,
			result: func(c *Client) any {
				return uint64(7)
			},
		},
	},
	"eth_getTransactionReceipt": {
		{
			name: "mined",
			invoke: func(c *Client) (any, error) {
				return c.GetTransactionReceipt(testTxHash)
			},
			serverResponse: `"result":{"transactionHash":"0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",` +
				`"blockHash":"0x0000000000000000000000000000000000000000000000000000000000000001","blockNumber":"0x10",` +
				`"from":"0x2c7536e3605d9c16a7a3d7b1898e529396a65c23","to":"0xc4ca13280b8eafd7a033670e620b1af74950e147",` +
				`"gasUsed":"0x5208","status":"0x1","logs":[],"cumulativeGasUsed":"0x5208"}`,
			params: `["0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"]`,
			result: func(c *Client) any {
				to := testContract
				return &ethrpc.Receipt{
					TxHash:      testTxHash,
					BlockHash:   common.BigToHash(big.NewInt(1)),
					BlockNumber: (*hexutil.Big)(big.NewInt(16)),
					From:        testSender,
					To:          &to,
					GasUsed:     21000,
					Status:      ethrpc.ReceiptStatusSuccessful,
				}
			},
		},
		{
			name: "pending",
			invoke: func(c *Client) (any, error) {
				return c.GetTransactionReceipt(testTxHash)
			},
			serverResponse: `"result":null`,
			result: func(c *Client) any {
				return (*ethrpc.Receipt)(nil)
			},
		},
	},
	"eth_sendRawTransaction": {
		{
			name: "positive",
			invoke: func(c *Client) (any, error) {
				return c.SendRawTransaction(testTx)
			},
			serverResponse: `"result":"0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"`,
			result: func(c *Client) any {
				return testTxHash
			},
		},
	},
}

func TestRPCClients(t *testing.T) {
	t.Run("Client", func(t *testing.T) {
		testRPCClient(t, func(t *testing.T, ctx context.Context, endpoint string, opts Options) (*Client, error) {
			return New(ctx, endpoint, opts)
		})
	})
	t.Run("WSClient", func(t *testing.T) {
		testRPCClient(t, func(t *testing.T, ctx context.Context, endpoint string, opts Options) (*Client, error) {
			wsc, err := NewWS(ctx, httpURLtoWS(endpoint), WSOptions{Options: opts})
			if err != nil {
				return nil, err
			}
			t.Cleanup(wsc.Close)
			return &wsc.Client, nil
		})
	})
}

func testRPCClient(t *testing.T, newClient func(*testing.T, context.Context, string, Options) (*Client, error)) {
	for method, testBatch := range rpcClientTestCases {
		t.Run(method, func(t *testing.T) {
			for _, testCase := range testBatch {
				t.Run(testCase.name, func(t *testing.T) {
					srv := initTestServer(t, method, testCase.params, testCase.serverResponse)

					c, err := newClient(t, context.TODO(), srv.URL, Options{})
					require.NoError(t, err)

					actual, err := testCase.invoke(c)
					require.NoError(t, err)
					require.Equal(t, testCase.result(c), actual)
				})
			}
		})
	}
}

func TestRPCClientErrors(t *testing.T) {
	var errCases = map[string]func(t *testing.T, err error){
		`"error":{"code":-32000,"message":"nonce too low: next nonce 8, tx nonce 7"}`: func(t *testing.T, err error) {
			require.ErrorIs(t, err, ethrpc.ErrNonceTooLow)
			require.ErrorIs(t, err, ethrpc.ErrTransport)
		},
		`"error":{"code":-32000,"message":"replacement transaction underpriced"}`: func(t *testing.T, err error) {
			require.ErrorIs(t, err, ethrpc.ErrUnderpriced)
		},
		`"error":{"code":3,"message":"execution reverted: no","data":"0x08c379a0` +
			`0000000000000000000000000000000000000000000000000000000000000020` +
			`0000000000000000000000000000000000000000000000000000000000000002` +
			`6e6f000000000000000000000000000000000000000000000000000000000000"}`: func(t *testing.T, err error) {
			var re *ethrpc.RevertError
			require.ErrorAs(t, err, &re)
			require.Equal(t, "no", re.Reason)
			require.ErrorIs(t, err, ethrpc.ErrTransport)
		},
		`"result":"notahexstring"`: func(t *testing.T, err error) {
			require.ErrorIs(t, err, ethrpc.ErrTransport)
			require.Contains(t, err.Error(), "bad result")
		},
		`"id2":1`: func(t *testing.T, err error) {
			require.ErrorIs(t, err, ethrpc.ErrTransport)
			require.Contains(t, err.Error(), "no result returned")
		},
	}
	for resp, check := range errCases {
		srv := initTestServer(t, "", "", resp)
		c, err := New(context.TODO(), srv.URL, Options{})
		require.NoError(t, err)
		_, err = c.SendRawTransaction(testTx)
		check(t, err)
	}
}

func TestHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.TODO(), srv.URL, Options{})
	require.NoError(t, err)
	_, err = c.ChainID()
	require.ErrorIs(t, err, ethrpc.ErrTransport)
	require.Contains(t, err.Error(), "HTTP 502")

	// Node errors are more relevant than HTTP status.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid argument"}}`))
	}))
	t.Cleanup(srv2.Close)
	c, err = New(context.TODO(), srv2.URL, Options{})
	require.NoError(t, err)
	_, err = c.ChainID()
	var rpcErr *ethrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, int64(ethrpc.InvalidParamsCode), rpcErr.Code)
}

func TestNewErrors(t *testing.T) {
	_, err := New(context.TODO(), "localhost", Options{})
	require.Error(t, err)
	_, err = New(context.TODO(), "://", Options{})
	require.Error(t, err)
	_, err = NewWS(context.TODO(), "ws://127.0.0.1:1", WSOptions{Options: Options{DialTimeout: time.Second}})
	require.ErrorIs(t, err, ethrpc.ErrTransport)
}

func TestGetEndpoint(t *testing.T) {
	host := "http://localhost:1234"
	c, err := New(context.TODO(), host, Options{})
	require.NoError(t, err)
	require.Equal(t, host, c.Endpoint())
	require.False(t, IsWebsocketEndpoint(host))
	require.True(t, IsWebsocketEndpoint("wss://localhost:1234/ws"))
}

func TestRequestIDs(t *testing.T) {
	var ids []uint64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r := new(ethrpc.Request)
		if !assert.NoError(t, json.NewDecoder(req.Body).Decode(r)) {
			return
		}
		ids = append(ids, r.ID)
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":"0x1"}`, r.ID)
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.TODO(), srv.URL, Options{})
	require.NoError(t, err)
	for range 3 {
		_, err = c.BlockNumber()
		require.NoError(t, err)
	}
	require.Equal(t, []uint64{1, 2, 3}, ids)
}

// TestWSResponseMatching makes the server answer a pair of requests in
// reverse order, every caller must still get its own result.
func TestWSResponseMatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()
		for {
			var batch []*ethrpc.Request
			for range 2 {
				r := new(ethrpc.Request)
				if err := ws.ReadJSON(r); err != nil {
					return
				}
				batch = append(batch, r)
			}
			for i := len(batch) - 1; i >= 0; i-- {
				addr := batch[i].Params[0].(string)
				resp := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"0x%s"}`, batch[i].ID, addr[len(addr)-2:])
				if err := ws.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewWS(context.TODO(), httpURLtoWS(srv.URL), WSOptions{})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	type res struct {
		want, got uint64
		err       error
	}
	results := make(chan res)
	for i := range 10 {
		go func() {
			addr := common.BigToAddress(big.NewInt(int64(i + 1)))
			n, err := c.GetTransactionCount(addr, ethrpc.BlockLatest)
			results <- res{want: uint64(i + 1), got: n, err: err}
		}()
	}
	for range 10 {
		r := <-results
		require.NoError(t, r.err)
		require.Equal(t, r.want, r.got)
	}
}

func TestWSStringIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()
		for {
			r := new(ethrpc.Request)
			if err := ws.ReadJSON(r); err != nil {
				return
			}
			for _, resp := range []string{
				`{"jsonrpc":"2.0","id":"abc","result":"0x1"}`,
				`{"jsonrpc":"2.0","method":"eth_subscription","params":{}}`,
				fmt.Sprintf(`{"jsonrpc":"2.0","id":"%d","result":"0x66eee"}`, r.ID),
			} {
				if err := ws.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewWS(context.TODO(), httpURLtoWS(srv.URL), WSOptions{Options: Options{RequestTimeout: 5 * time.Second}})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	for range 2 {
		id, err := c.ChainID()
		require.NoError(t, err)
		require.Equal(t, int64(421614), id.Int64())
	}
}

func TestResponseID(t *testing.T) {
	var testCases = map[string]struct {
		id uint64
		ok bool
	}{
		`7`:        {7, true},
		`"7"`:      {7, true},
		`"0x7"`:    {0, false},
		`"abc"`:    {0, false},
		`-1`:       {0, false},
		`null`:     {0, false},
		``:         {0, false},
		`{"id":1}`: {0, false},
	}
	for raw, tc := range testCases {
		id, ok := responseID(json.RawMessage(raw))
		require.Equal(t, tc.ok, ok, raw)
		require.Equal(t, tc.id, id, raw)
	}
}

func TestWSClose(t *testing.T) {
	srv := initTestServer(t, "", "", `"result":"0x1"`)
	c, err := NewWS(context.TODO(), httpURLtoWS(srv.URL), WSOptions{})
	require.NoError(t, err)

	_, err = c.ChainID()
	require.NoError(t, err)
	c.Close()
	c.Close()
	require.NoError(t, c.GetError())

	_, err = c.ChainID()
	require.ErrorIs(t, err, ErrWSConnLost)
	require.ErrorIs(t, err, ethrpc.ErrTransport)
}

func TestWSServerDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var upgrader = websocket.Upgrader{}
		ws, err := upgrader.Upgrade(w, req, nil)
		if !assert.NoError(t, err) {
			return
		}
		// Read the request and drop the connection without answering.
		_, _, _ = ws.ReadMessage()
		_ = ws.Close()
	}))
	t.Cleanup(srv.Close)

	c, err := NewWS(context.TODO(), httpURLtoWS(srv.URL), WSOptions{})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.ChainID()
	require.ErrorIs(t, err, ErrWSConnLost)
	require.Error(t, c.GetError())
}

func httpURLtoWS(url string) string {
	return "ws" + strings.TrimPrefix(url, "http") + "/ws"
}

// initTestServer creates a server answering both HTTP and websocket
// requests with the given response body part, method and params are
// checked if not empty.
func initTestServer(t *testing.T, method string, params string, resp string) *httptest.Server {
	handle := func(r *ethrpc.Request) []byte {
		if method != "" {
			assert.Equal(t, method, r.Method)
		}
		if params != "" {
			actual, err := json.Marshal(r.Params)
			assert.NoError(t, err)
			assert.JSONEq(t, params, string(actual))
		}
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,%s}`, r.ID, resp))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/ws" && req.Method == "GET" {
			var upgrader = websocket.Upgrader{}
			ws, err := upgrader.Upgrade(w, req, nil)
			if !assert.NoError(t, err) {
				return
			}
			for {
				_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
				r := new(ethrpc.Request)
				if err := ws.ReadJSON(r); err != nil {
					break
				}
				_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := ws.WriteMessage(websocket.TextMessage, handle(r)); err != nil {
					break
				}
			}
			ws.Close()
			return
		}
		r := new(ethrpc.Request)
		if err := json.NewDecoder(req.Body).Decode(r); err != nil {
			t.Errorf("cannot decode request body: %s", err)
			return
		}
		_, _ = w.Write(handle(r))
	}))

	t.Cleanup(srv.Close)

	return srv
}
