package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Connector produces a fresh Connection. Session calls it on every Connect.
type Connector interface {
	Connect(ctx context.Context) (*Connection, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (*Connection, error)

func (f ConnectorFunc) Connect(ctx context.Context) (*Connection, error) { return f(ctx) }

// RPCConnector dials a JSON-RPC endpoint. With a private key the connection signs
// locally; without one it is read-only and acts as Account.
type RPCConnector struct {
	RPCURL        string
	ChainID       int64
	PrivateKeyHex string
	Account       string
	Approve       ApproveFunc
}

func (c RPCConnector) Connect(ctx context.Context) (*Connection, error) {
	if c.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	cli, err := ethclient.DialContext(ctx, c.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if c.ChainID != 0 && chainID.Int64() != c.ChainID {
		cli.Close()
		return nil, fmt.Errorf("%w: want %d, got %s", ErrWrongChain, c.ChainID, chainID)
	}

	opts := []Option{WithChainID(chainID), WithCloser(cli.Close)}
	if c.Approve != nil {
		opts = append(opts, WithApproval(c.Approve))
	}

	var account common.Address
	switch {
	case c.PrivateKeyHex != "":
		pk, err := parsePrivateKey(c.PrivateKeyHex)
		if err != nil {
			cli.Close()
			return nil, err
		}
		txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
		if err != nil {
			cli.Close()
			return nil, fmt.Errorf("transactor: %w", err)
		}
		txOpts.GasLimit = 0 // let node estimate
		txOpts.GasPrice = nil
		txOpts.Nonce = nil
		opts = append(opts, WithTransactor(txOpts))
	case c.Account != "":
		if !common.IsHexAddress(c.Account) {
			cli.Close()
			return nil, fmt.Errorf("invalid account address %q", c.Account)
		}
		account = common.HexToAddress(c.Account)
	}

	return NewConnection(cli, account, opts...), nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
