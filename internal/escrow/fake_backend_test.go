package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

var (
	testChainID  = big.NewInt(1337)
	innchainAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenAddr    = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type fakeClass struct {
	id    uint64
	name  string
	price *big.Int
}

type fakeHotel struct {
	id      uint64
	name    string
	wallet  common.Address
	classes []fakeClass
}

// revertError mimics a node's JSON-RPC error for a reverted call.
type revertError struct {
	reason string
}

func (e *revertError) Error() string { return "execution reverted: " + e.reason }

func (e *revertError) ErrorCode() int { return 3 }

func (e *revertError) ErrorData() interface{} {
	str, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: str}}.Pack(e.reason)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return hexutil.Encode(append(selector, packed...))
}

type providerError struct {
	code int
	msg  string
}

func (e *providerError) Error() string  { return e.msg }
func (e *providerError) ErrorCode() int { return e.code }

// fakeChain is an in-memory stand-in for the escrow and token contracts behind a
// JSON-RPC backend.
type fakeChain struct {
	t        *testing.T
	innABI   abi.ABI
	tokenABI abi.ABI

	mu          sync.Mutex
	decimals    uint8
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]*big.Int
	hotels      []fakeHotel
	roomClasses []fakeClass
	bookings    map[uint64]bookingRecord
	logs        []types.Log

	truncateHotelNames bool
	estimateErr        map[string]error
	callErr            map[string]error
	receiptStatus      uint64
	receiptMisses      int

	calls []string
	sent  []*types.Transaction
	nonce uint64
	block uint64

	feed event.Feed
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	innABI, err := abi.JSON(strings.NewReader(contracts.InnChainABI))
	require.NoError(t, err)
	tokenABI, err := abi.JSON(strings.NewReader(contracts.ERC20ABI))
	require.NoError(t, err)
	return &fakeChain{
		t:             t,
		innABI:        innABI,
		tokenABI:      tokenABI,
		decimals:      6,
		balances:      make(map[common.Address]*big.Int),
		allowances:    make(map[common.Address]*big.Int),
		bookings:      make(map[uint64]bookingRecord),
		estimateErr:   make(map[string]error),
		callErr:       make(map[string]error),
		receiptStatus: types.ReceiptStatusSuccessful,
		block:         100,
	}
}

// units returns v * 10^decimals.
func units(v int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// seedRimuru installs one hotel with one class priced 120 at 18 decimals and one
// pending booking for customer with roomCost 120 at 6 decimals and deposit 10 at 18.
func (f *fakeChain) seedRimuru(customer common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deluxe := fakeClass{id: 1, name: "Deluxe", price: units(120, 18)}
	f.hotels = []fakeHotel{{
		id:      1,
		name:    "Rimuru Hotel",
		wallet:  common.HexToAddress("0x3000000000000000000000000000000000000003"),
		classes: []fakeClass{deluxe},
	}}
	f.roomClasses = []fakeClass{deluxe}
	f.bookings[1] = bookingRecord{
		Id:          big.NewInt(1),
		HotelId:     big.NewInt(1),
		RoomClassId: big.NewInt(1),
		Customer:    customer,
		Nights:      big.NewInt(1),
		RoomCost:    units(120, 6),
		Deposit:     units(10, 18),
		CheckedIn:   false,
		Settled:     false,
		CreatedAt:   big.NewInt(1_700_000_000),
	}
}

func (f *fakeChain) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// emit delivers a log to live subscribers and keeps it for FilterLogs.
func (f *fakeChain) emit(lg types.Log) {
	f.mu.Lock()
	f.block++
	lg.Address = innchainAddr
	lg.BlockNumber = f.block
	f.logs = append(f.logs, lg)
	f.mu.Unlock()
	f.feed.Send(lg)
}

func (f *fakeChain) bookingCreatedLog(bookingID, hotelID uint64, customer common.Address) types.Log {
	return types.Log{
		Topics: []common.Hash{
			f.innABI.Events[contracts.EventBookingCreated].ID,
			common.BigToHash(new(big.Int).SetUint64(bookingID)),
			common.BigToHash(new(big.Int).SetUint64(hotelID)),
			common.BytesToHash(customer.Bytes()),
		},
		TxHash: common.BigToHash(new(big.Int).SetUint64(bookingID + 1000)),
	}
}

func (f *fakeChain) checkInLog(bookingID uint64, released *big.Int) types.Log {
	ev := f.innABI.Events[contracts.EventCheckInConfirmed]
	data, err := ev.Inputs.NonIndexed().Pack(released)
	require.NoError(f.t, err)
	return types.Log{
		Topics: []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(bookingID))},
		Data:   data,
	}
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) lookup(to *common.Address, data []byte) (*abi.ABI, *abi.Method, []interface{}, error) {
	if to == nil || len(data) < 4 {
		return nil, nil, nil, errors.New("fake: malformed call")
	}
	var parsed *abi.ABI
	switch *to {
	case innchainAddr:
		parsed = &f.innABI
	case tokenAddr:
		parsed = &f.tokenABI
	default:
		return nil, nil, nil, fmt.Errorf("fake: unknown contract %s", to.Hex())
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, err
	}
	return parsed, method, args, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	_, method, args, err := f.lookup(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method.Name)
	if err := f.callErr[method.Name]; err != nil {
		return nil, err
	}

	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	case "balanceOf":
		return method.Outputs.Pack(orZero(f.balances[args[0].(common.Address)]))
	case "allowance":
		return method.Outputs.Pack(orZero(f.allowances[args[0].(common.Address)]))
	case "getBooking":
		id := args[0].(*big.Int).Uint64()
		rec, ok := f.bookings[id]
		if !ok {
			rec = bookingRecord{
				Id: new(big.Int), HotelId: new(big.Int), RoomClassId: new(big.Int), Nights: new(big.Int),
				RoomCost: new(big.Int), Deposit: new(big.Int), CreatedAt: new(big.Int),
			}
		}
		return method.Outputs.Pack(rec)
	case "getAllHotels":
		return f.packAllHotels(method)
	case "getHotel":
		id := args[0].(*big.Int).Uint64()
		for _, h := range f.hotels {
			if h.id == id {
				return method.Outputs.Pack(true, h.name, h.wallet, big.NewInt(int64(len(h.classes))))
			}
		}
		return method.Outputs.Pack(false, "", common.Address{}, new(big.Int))
	case "getHotelClasses":
		id := args[0].(*big.Int).Uint64()
		ids := []*big.Int{}
		for _, h := range f.hotels {
			if h.id == id {
				for _, c := range h.classes {
					ids = append(ids, new(big.Int).SetUint64(c.id))
				}
			}
		}
		return method.Outputs.Pack(ids)
	case "getAllRoomClasses":
		ids, names, prices := []*big.Int{}, []string{}, []*big.Int{}
		for _, c := range f.roomClasses {
			ids = append(ids, new(big.Int).SetUint64(c.id))
			names = append(names, c.name)
			prices = append(prices, c.price)
		}
		return method.Outputs.Pack(ids, names, prices)
	default:
		// State-changing methods only reach CallContract when a failed receipt is replayed.
		return method.Outputs.Pack(outputsFor(method)...)
	}
}

func (f *fakeChain) packAllHotels(method *abi.Method) ([]byte, error) {
	ids, names, wallets := []*big.Int{}, []string{}, []common.Address{}
	classIDs, classNames, classPrices := [][]*big.Int{}, [][]string{}, [][]*big.Int{}
	for _, h := range f.hotels {
		ids = append(ids, new(big.Int).SetUint64(h.id))
		names = append(names, h.name)
		wallets = append(wallets, h.wallet)
		cids, cnames, cprices := []*big.Int{}, []string{}, []*big.Int{}
		for _, c := range h.classes {
			cids = append(cids, new(big.Int).SetUint64(c.id))
			cnames = append(cnames, c.name)
			cprices = append(cprices, c.price)
		}
		classIDs = append(classIDs, cids)
		classNames = append(classNames, cnames)
		classPrices = append(classPrices, cprices)
	}
	if f.truncateHotelNames && len(names) > 0 {
		names = names[:len(names)-1]
	}
	return method.Outputs.Pack(ids, names, wallets, classIDs, classNames, classPrices)
}

func outputsFor(method *abi.Method) []interface{} {
	out := make([]interface{}, 0, len(method.Outputs))
	for _, arg := range method.Outputs {
		switch arg.Type.T {
		case abi.BoolTy:
			out = append(out, true)
		default:
			out = append(out, new(big.Int))
		}
	}
	return out
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.block)}, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	_, method, _, err := f.lookup(msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.estimateErr[method.Name]; err != nil {
		return 0, err
	}
	return 100_000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	if err != nil {
		return err
	}
	_, method, args, err := f.lookup(tx.To(), tx.Data())
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.nonce++
	if method.Name == "approve" {
		f.allowances[from] = args[1].(*big.Int)
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      f.receiptStatus,
		BlockNumber: new(big.Int).SetUint64(f.block),
		GasUsed:     21_000,
	}, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "FilterLogs")
	var out []types.Log
	for _, lg := range f.logs {
		if matchTopics(lg.Topics, q.Topics) {
			out = append(out, lg)
		}
	}
	return out, nil
}

func matchTopics(topics []common.Hash, filter [][]common.Hash) bool {
	for i, want := range filter {
		if len(want) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		ok := false
		for _, h := range want {
			if topics[i] == h {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (f *fakeChain) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return f.feed.Subscribe(ch), nil
}

// signer returns a connection that signs with a fresh key on the fake chain.
func (f *fakeChain) signer(t *testing.T, opts ...wallet.Option) *wallet.Connection {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	transactor, err := bind.NewKeyedTransactorWithChainID(key, testChainID)
	require.NoError(t, err)
	opts = append([]wallet.Option{wallet.WithTransactor(transactor), wallet.WithChainID(testChainID)}, opts...)
	return wallet.NewConnection(f, transactor.From, opts...)
}

func (f *fakeChain) reader(account common.Address) *wallet.Connection {
	return wallet.NewConnection(f, account, wallet.WithChainID(testChainID))
}

func newTestAdapter(t *testing.T, opts ...Option) (*Adapter, *fakeChain) {
	t.Helper()
	a, err := New(Config{
		InnChain:            innchainAddr,
		Token:               tokenAddr,
		ReceiptPollInterval: time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, newFakeChain(t)
}
