package escrow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

var (
	ErrConnectionUnavailable = errors.New("escrow: wallet connection unavailable")
	ErrTransactionRejected   = errors.New("escrow: transaction rejected by wallet")
	ErrTransactionReverted   = errors.New("escrow: transaction reverted")
	ErrNotFound              = errors.New("escrow: not found")
	ErrMalformedAmount       = fixedpoint.ErrMalformedAmount
)

// codeUserRejected is the EIP-1193 provider error for a declined request.
const codeUserRejected = 4001

// RevertError carries the contract's revert reason when the node reports one.
type RevertError struct {
	Method string
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	msg := "escrow: " + e.Method + " reverted"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TxHash != (common.Hash{}) {
		msg += " (tx " + e.TxHash.Hex() + ")"
	}
	return msg
}

func (e *RevertError) Unwrap() error { return ErrTransactionReverted }

// classify maps a submission or call failure onto the adapter's error taxonomy.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wallet.ErrNotConnected) || errors.Is(err, wallet.ErrNoSigner) {
		return fmt.Errorf("%s: %w: %v", method, ErrConnectionUnavailable, err)
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return fmt.Errorf("%s: %w", method, ErrTransactionRejected)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%s: %w: %s", method, ErrTransactionRejected, rpcErr.Error())
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return &RevertError{Method: method, Reason: reason}
		}
	}

	const marker = "execution reverted"
	if msg := err.Error(); strings.Contains(msg, marker) {
		reason := strings.TrimPrefix(msg[strings.Index(msg, marker)+len(marker):], ":")
		return &RevertError{Method: method, Reason: strings.TrimSpace(reason)}
	}

	return fmt.Errorf("%s: %w", method, err)
}

func revertReason(data interface{}) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = v
	default:
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrConnectionUnavailable):
		return "unavailable"
	case errors.Is(err, ErrTransactionRejected):
		return "rejected"
	case errors.Is(err, ErrTransactionReverted):
		return "reverted"
	case errors.Is(err, ErrMalformedAmount):
		return "invalid"
	default:
		return "failed"
	}
}
