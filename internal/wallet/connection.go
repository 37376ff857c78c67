// Package wallet holds the active chain connection and its connect/disconnect lifecycle.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNotConnected = errors.New("wallet: not connected")
	ErrNoSigner     = errors.New("wallet: connection has no signer")
	ErrUserRejected = errors.New("wallet: request rejected by user")
	ErrWrongChain   = errors.New("wallet: connected to unexpected chain")
)

// Backend is the JSON-RPC surface contract bindings and receipt polling need.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ApproveFunc stands in for the wallet's confirmation prompt. Returning an error
// (normally ErrUserRejected) stops the transaction before it is signed.
type ApproveFunc func(ctx context.Context, tx *types.Transaction) error

// Connection is one live wallet handle. It is never mutated after construction
// except for being closed.
type Connection struct {
	backend    Backend
	account    common.Address
	chainID    *big.Int
	transactor *bind.TransactOpts
	approve    ApproveFunc
	closer     func()

	closeOnce sync.Once
	closed    atomic.Bool
}

type Option func(*Connection)

func WithChainID(id *big.Int) Option {
	return func(c *Connection) { c.chainID = id }
}

// WithTransactor makes the connection able to sign. The account is taken from opts.From.
func WithTransactor(opts *bind.TransactOpts) Option {
	return func(c *Connection) {
		c.transactor = opts
		if opts != nil {
			c.account = opts.From
		}
	}
}

func WithApproval(fn ApproveFunc) Option {
	return func(c *Connection) { c.approve = fn }
}

func WithCloser(fn func()) Option {
	return func(c *Connection) { c.closer = fn }
}

func NewConnection(backend Backend, account common.Address, opts ...Option) *Connection {
	c := &Connection{backend: backend, account: account}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) Backend() Backend { return c.backend }

func (c *Connection) Account() common.Address { return c.account }

func (c *Connection) ChainID() *big.Int { return c.chainID }

// Active reports whether the connection can still be used. A nil connection is inactive.
func (c *Connection) Active() bool {
	return c != nil && !c.closed.Load()
}

func (c *Connection) CanSign() bool {
	return c.Active() && c.transactor != nil
}

// TransactOpts returns a private copy of the signer options bound to ctx. When an
// approval callback is configured it runs before the transaction is signed.
func (c *Connection) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if !c.Active() || c.backend == nil {
		return nil, ErrNotConnected
	}
	if c.transactor == nil {
		return nil, ErrNoSigner
	}
	opts := *c.transactor
	opts.Context = ctx
	if c.approve != nil {
		sign := opts.Signer
		approve := c.approve
		opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if err := approve(ctx, tx); err != nil {
				return nil, err
			}
			return sign(from, tx)
		}
	}
	return &opts, nil
}

// CallOpts returns read options bound to ctx, reading as the connection account.
func (c *Connection) CallOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: c.account}
}

// Close marks the connection unusable and releases the underlying client.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.closer != nil {
			c.closer()
		}
	})
}
