package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopBackend satisfies Backend for tests that never reach the chain.
type nopBackend struct{ Backend }

func TestSessionLifecycle(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	connector := ConnectorFunc(func(context.Context) (*Connection, error) {
		return NewConnection(nopBackend{}, account), nil
	})

	s := NewSession(connector, zerolog.Nop())
	require.False(t, s.Connected())
	require.Nil(t, s.Current())

	var mu sync.Mutex
	var seen []Status
	cancel := s.Watch(func(st Status) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})
	defer cancel()

	first, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, s.Connected())
	require.Same(t, first, s.Current())

	second, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.NotSame(t, first, second)
	assert.False(t, first.Active(), "replaced connection must be closed")
	assert.Same(t, second, s.Current())

	s.Disconnect()
	assert.False(t, s.Connected())
	assert.False(t, second.Active())
	s.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.True(t, seen[0].Connected)
	assert.Equal(t, account, seen[0].Account)
	assert.Equal(t, uint64(1), seen[0].Generation)
	assert.Equal(t, uint64(2), seen[1].Generation)
	assert.False(t, seen[2].Connected)
	assert.Equal(t, uint64(3), seen[2].Generation)
}

func TestSessionConnectFailureKeepsPrevious(t *testing.T) {
	fail := false
	connector := ConnectorFunc(func(context.Context) (*Connection, error) {
		if fail {
			return nil, errors.New("wallet extension unavailable")
		}
		return NewConnection(nopBackend{}, common.Address{}), nil
	})
	s := NewSession(connector, zerolog.Nop())

	conn, err := s.Connect(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = s.Connect(context.Background())
	require.Error(t, err)
	assert.Same(t, conn, s.Current())
	assert.Equal(t, uint64(1), s.Status().Generation)
}

func TestWatchCancelRemovesOnlyThatWatcher(t *testing.T) {
	s := NewSession(ConnectorFunc(func(context.Context) (*Connection, error) {
		return NewConnection(nopBackend{}, common.Address{}), nil
	}), zerolog.Nop())

	var a, b int
	cancelA := s.Watch(func(Status) { a++ })
	cancelB := s.Watch(func(Status) { b++ })
	defer cancelB()

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	cancelA()
	cancelA()
	s.Disconnect()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestTransactOptsApproval(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	chainID := big.NewInt(1337)
	txOpts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	require.NoError(t, err)

	readOnly := NewConnection(nopBackend{}, common.Address{})
	_, err = readOnly.TransactOpts(context.Background())
	require.ErrorIs(t, err, ErrNoSigner)

	var nilConn *Connection
	_, err = nilConn.TransactOpts(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	decline := true
	conn := NewConnection(nopBackend{}, common.Address{},
		WithChainID(chainID),
		WithTransactor(txOpts),
		WithApproval(func(context.Context, *types.Transaction) error {
			if decline {
				return ErrUserRejected
			}
			return nil
		}),
	)
	require.True(t, conn.CanSign())
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), conn.Account())

	opts, err := conn.TransactOpts(context.Background())
	require.NoError(t, err)
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1)})

	_, err = opts.Signer(opts.From, tx)
	require.ErrorIs(t, err, ErrUserRejected)

	decline = false
	signed, err := opts.Signer(opts.From, tx)
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, conn.Account(), sender)

	conn.Close()
	_, err = conn.TransactOpts(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func newChainIDServer(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": chainID})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCConnectorWithKey(t *testing.T) {
	srv := newChainIDServer(t, "0x106a")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := RPCConnector{
		RPCURL:        srv.URL,
		ChainID:       4202,
		PrivateKeyHex: hexutil.Encode(crypto.FromECDSA(key)),
	}.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, int64(4202), conn.ChainID().Int64())
	assert.True(t, conn.CanSign())
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), conn.Account())
}

func TestRPCConnectorReadOnly(t *testing.T) {
	srv := newChainIDServer(t, "0x106a")
	account := "0x00000000000000000000000000000000000000bb"

	conn, err := RPCConnector{RPCURL: srv.URL, Account: account}.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.False(t, conn.CanSign())
	assert.Equal(t, common.HexToAddress(account), conn.Account())
}

func TestRPCConnectorRejectsWrongChain(t *testing.T) {
	srv := newChainIDServer(t, "0x1")
	_, err := RPCConnector{RPCURL: srv.URL, ChainID: 4202}.Connect(context.Background())
	require.ErrorIs(t, err, ErrWrongChain)
}

func TestRPCConnectorValidation(t *testing.T) {
	_, err := RPCConnector{}.Connect(context.Background())
	require.Error(t, err)

	srv := newChainIDServer(t, "0x106a")
	_, err = RPCConnector{RPCURL: srv.URL, PrivateKeyHex: "not-a-key"}.Connect(context.Background())
	require.Error(t, err)

	_, err = RPCConnector{RPCURL: srv.URL, Account: "0xnope"}.Connect(context.Background())
	require.Error(t, err)
}
