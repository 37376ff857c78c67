package escrow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// ApproveSpend approves the escrow contract to pull amount tokens from the connected
// account. amount is in token units and is scaled by the token's decimals().
func (a *Adapter) ApproveSpend(ctx context.Context, conn *wallet.Connection, amount string) (TxReceipt, error) {
	const method = "approve"
	if err := fixedpoint.Validate(amount); err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	if err := a.requireSigner(conn); err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}

	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, err
	}
	value, err := fixedpoint.Scale(amount, decimals)
	if err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	return a.transact(ctx, conn, true, method, a.cfg.InnChain, value)
}

// CheckAllowance returns how much the escrow contract may still pull from owner.
func (a *Adapter) CheckAllowance(ctx context.Context, conn *wallet.Connection, owner common.Address) (string, error) {
	return a.tokenAmount(ctx, conn, "allowance", owner, a.cfg.InnChain)
}

func (a *Adapter) GetBalance(ctx context.Context, conn *wallet.Connection, owner common.Address) (string, error) {
	return a.tokenAmount(ctx, conn, "balanceOf", owner)
}

func (a *Adapter) tokenAmount(ctx context.Context, conn *wallet.Connection, method string, args ...interface{}) (string, error) {
	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		return "", err
	}
	out, err := a.callToken(ctx, conn, method, args...)
	if err != nil {
		return "", err
	}
	v, err := output[*big.Int](out, 0, method)
	if err != nil {
		return "", err
	}
	return fixedpoint.Descale(v, decimals), nil
}
