package chaincheck

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vertti/probe/pkg/check"
)

// tokenABIJSON is the read-only surface of the credit token contract.
const tokenABIJSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"version","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var tokenABI = mustParseABI(tokenABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chaincheck: invalid token ABI: %v", err))
	}
	return parsed
}

// Role is an access-control role checked with hasRole.
type Role struct {
	Name string
	Hash common.Hash
}

var (
	// AdminRole is DEFAULT_ADMIN_ROLE, the zero hash.
	AdminRole = Role{Name: "DEFAULT_ADMIN_ROLE"}
	// MinterRole is keccak256("MINTER_ROLE").
	MinterRole = Role{Name: "MINTER_ROLE", Hash: crypto.Keccak256Hash([]byte("MINTER_ROLE"))}
)

// call performs an eth_call of method on contract and decodes the outputs.
// An empty return means there is no code at the address (or the method
// does not exist) and is reported as a malformed response.
func call(ctx context.Context, client Client, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s(): %w", method, err)
	}

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, rpcError(method+"()", err)
	}
	if len(out) == 0 {
		return nil, check.Malformedf("%s() returned no data: no contract code at %s or method not implemented", method, contract.Hex())
	}

	values, err := tokenABI.Unpack(method, out)
	if err != nil {
		return nil, check.Wrap(check.KindMalformed, fmt.Errorf("decoding %s(): %w", method, err))
	}
	if len(values) == 0 {
		return nil, check.Malformedf("%s() decoded to no values", method)
	}
	return values, nil
}

func callString(ctx context.Context, client Client, contract common.Address, method string) (string, error) {
	values, err := call(ctx, client, contract, method)
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", check.Malformedf("%s() returned %T, want string", method, values[0])
	}
	return s, nil
}

func callBool(ctx context.Context, client Client, contract common.Address, method string, args ...interface{}) (bool, error) {
	values, err := call(ctx, client, contract, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := values[0].(bool)
	if !ok {
		return false, check.Malformedf("%s() returned %T, want bool", method, values[0])
	}
	return b, nil
}

func callBigInt(ctx context.Context, client Client, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := call(ctx, client, contract, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, check.Malformedf("%s() returned %T, want uint256", method, values[0])
	}
	return n, nil
}

func callUint8(ctx context.Context, client Client, contract common.Address, method string) (uint8, error) {
	values, err := call(ctx, client, contract, method)
	if err != nil {
		return 0, err
	}
	n, ok := values[0].(uint8)
	if !ok {
		return 0, check.Malformedf("%s() returned %T, want uint8", method, values[0])
	}
	return n, nil
}
