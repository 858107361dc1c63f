package chaincheck

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vertti/probe/pkg/check"
)

// Client is the part of *ethclient.Client the checks use.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// DialFunc opens a client for an RPC endpoint.
type DialFunc func(ctx context.Context, rawURL string) (Client, error)

// DialEthclient connects through go-ethereum's ethclient. For HTTP
// endpoints no request is made until the first call.
func DialEthclient(ctx context.Context, rawURL string) (Client, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// errCodeLimitExceeded is the JSON-RPC code providers use for request limits (EIP-1474).
const errCodeLimitExceeded = -32005

// rpcError translates go-ethereum transport and JSON-RPC errors into the
// check taxonomy, prefixing op.
func rpcError(op string, err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("%s: %w", op, &check.RemoteError{
			Service:    "rpc endpoint",
			StatusCode: httpErr.StatusCode,
			Body:       check.TruncateBody(string(httpErr.Body)),
		})
	}

	var jsonErr rpc.Error
	if errors.As(err, &jsonErr) {
		remote := &check.RemoteError{
			Service: "rpc endpoint",
			Body:    fmt.Sprintf("%s (code %d)", jsonErr.Error(), jsonErr.ErrorCode()),
		}
		if jsonErr.ErrorCode() == errCodeLimitExceeded {
			return fmt.Errorf("%s: %w", op, check.Wrap(check.KindRateLimited, remote))
		}
		return fmt.Errorf("%s: %w", op, remote)
	}

	return fmt.Errorf("%s: %w", op, err)
}
