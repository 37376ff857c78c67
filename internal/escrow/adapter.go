package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

const defaultReceiptPoll = 2 * time.Second

// Config fixes the two contract addresses the adapter talks to.
type Config struct {
	InnChain common.Address
	Token    common.Address
	// StartBlock bounds log scans for customer bookings.
	StartBlock          uint64
	ReceiptPollInterval time.Duration
}

// Adapter translates booking actions into escrow and token contract calls and decodes
// the results into view models. It holds no connection of its own; every call takes
// the caller's live connection.
type Adapter struct {
	cfg       Config
	innABI    abi.ABI
	tokenABI  abi.ABI
	metrics   *Metrics
	log       zerolog.Logger
	listeners *listenerRegistry
}

type Option func(*Adapter)

func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

func New(cfg Config, opts ...Option) (*Adapter, error) {
	if cfg.InnChain == (common.Address{}) {
		return nil, fmt.Errorf("innchain contract address is required")
	}
	if cfg.Token == (common.Address{}) {
		return nil, fmt.Errorf("token contract address is required")
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPoll
	}

	innABI, err := abi.JSON(strings.NewReader(contracts.InnChainABI))
	if err != nil {
		return nil, fmt.Errorf("parse innchain abi: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(contracts.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	a := &Adapter{
		cfg:      cfg,
		innABI:   innABI,
		tokenABI: tokenABI,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With().Str("component", "escrow").Logger()
	a.listeners = newListenerRegistry(a.metrics)
	return a, nil
}

func (a *Adapter) backend(conn *wallet.Connection) (wallet.Backend, error) {
	if !conn.Active() || conn.Backend() == nil {
		return nil, ErrConnectionUnavailable
	}
	return conn.Backend(), nil
}

// requireSigner fails fast, before any RPC, when conn cannot submit transactions.
func (a *Adapter) requireSigner(conn *wallet.Connection) error {
	if _, err := a.backend(conn); err != nil {
		return err
	}
	if !conn.CanSign() {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, wallet.ErrNoSigner)
	}
	return nil
}

func (a *Adapter) contract(addr common.Address, parsed abi.ABI, backend wallet.Backend) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsed, backend, backend, backend)
}

func (a *Adapter) escrowContract(backend wallet.Backend) *bind.BoundContract {
	return a.contract(a.cfg.InnChain, a.innABI, backend)
}

func (a *Adapter) tokenContract(backend wallet.Backend) *bind.BoundContract {
	return a.contract(a.cfg.Token, a.tokenABI, backend)
}

func (a *Adapter) call(ctx context.Context, conn *wallet.Connection, target *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	started := time.Now()
	var out []interface{}
	err := target.Call(conn.CallOpts(ctx), &out, method, args...)
	a.metrics.observeRead(method, started, err)
	if err != nil {
		return nil, classify(method, err)
	}
	return out, nil
}

func (a *Adapter) callEscrow(ctx context.Context, conn *wallet.Connection, method string, args ...interface{}) ([]interface{}, error) {
	backend, err := a.backend(conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return a.call(ctx, conn, a.escrowContract(backend), method, args...)
}

func (a *Adapter) callToken(ctx context.Context, conn *wallet.Connection, method string, args ...interface{}) ([]interface{}, error) {
	backend, err := a.backend(conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return a.call(ctx, conn, a.tokenContract(backend), method, args...)
}

// tokenDecimals reads the settlement token's decimals() on every call.
func (a *Adapter) tokenDecimals(ctx context.Context, conn *wallet.Connection) (uint8, error) {
	out, err := a.callToken(ctx, conn, "decimals")
	if err != nil {
		return 0, err
	}
	return output[uint8](out, 0, "decimals")
}

// transact submits one transaction and blocks until it is mined.
func (a *Adapter) transact(ctx context.Context, conn *wallet.Connection, token bool, method string, args ...interface{}) (TxReceipt, error) {
	receipt, err := a.submit(ctx, conn, token, method, args...)
	a.metrics.observeTx(method, err)
	return receipt, err
}

func (a *Adapter) submit(ctx context.Context, conn *wallet.Connection, token bool, method string, args ...interface{}) (TxReceipt, error) {
	backend, err := a.backend(conn)
	if err != nil {
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	opts, err := conn.TransactOpts(ctx)
	if err != nil {
		return TxReceipt{}, classify(method, err)
	}

	target := a.escrowContract(backend)
	if token {
		target = a.tokenContract(backend)
	}

	tx, err := target.Transact(opts, method, args...)
	if err != nil {
		return TxReceipt{}, classify(method, err)
	}
	log := a.log.With().Str("method", method).Str("tx", tx.Hash().Hex()).Logger()
	log.Debug().Msg("transaction submitted")

	receipt, err := WaitForReceipt(ctx, backend, tx, a.cfg.ReceiptPollInterval)
	if err != nil {
		return TxReceipt{}, fmt.Errorf("%s: wait for receipt: %w", method, err)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := a.replayRevert(ctx, backend, opts.From, tx, receipt.BlockNumber)
		log.Warn().Str("reason", reason).Uint64("block", block).Msg("transaction reverted")
		return TxReceipt{}, &RevertError{Method: method, Reason: reason, TxHash: tx.Hash()}
	}

	log.Debug().Uint64("block", block).Uint64("gas_used", receipt.GasUsed).Msg("transaction confirmed")
	return TxReceipt{TxHash: tx.Hash(), BlockNumber: block, GasUsed: receipt.GasUsed}, nil
}

// replayRevert re-executes a failed transaction as a call at its block to recover
// the revert reason. An empty string means the node did not report one.
func (a *Adapter) replayRevert(ctx context.Context, backend wallet.Backend, from common.Address, tx *types.Transaction, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	if _, err := backend.CallContract(ctx, msg, block); err != nil {
		var revert *RevertError
		if errors.As(classify("replay", err), &revert) {
			return revert.Reason
		}
	}
	return ""
}

func output[T any](out []interface{}, i int, method string) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("%s: missing output %d", method, i)
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected type %T for output %d", method, out[i], i)
	}
	return v, nil
}

// uintReader narrows uint256 values to uint64, keeping the first failure.
type uintReader struct {
	err error
}

func (r *uintReader) read(v *big.Int, field string) uint64 {
	if r.err != nil {
		return 0
	}
	if v == nil || !v.IsUint64() {
		r.err = fmt.Errorf("%s out of range: %v", field, v)
		return 0
	}
	return v.Uint64()
}

func u256(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
