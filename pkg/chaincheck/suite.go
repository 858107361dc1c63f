// Package chaincheck probes a blockchain JSON-RPC endpoint and the token
// contract deployed behind it. Every check is a read; nothing is signed or sent.
package chaincheck

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/logging"
	"github.com/vertti/probe/pkg/netcheck"
)

// Suite builds the blockchain check definitions for one run.
type Suite struct {
	cfg    config.Config
	dial   DialFunc
	dialer netcheck.Dialer
	logger logging.Logger

	shared Client // set when cfg.ReuseClients and a dial succeeded
}

// Option customizes a Suite.
type Option func(*Suite)

// WithDial replaces the ethclient dialer.
func WithDial(dial DialFunc) Option {
	return func(s *Suite) { s.dial = dial }
}

// WithNetDialer replaces the dialer used by the TCP reachability check.
func WithNetDialer(d netcheck.Dialer) Option {
	return func(s *Suite) { s.dialer = d }
}

// New returns a Suite over cfg.
func New(cfg config.Config, logger logging.Logger, opts ...Option) *Suite {
	s := &Suite{cfg: cfg, dial: DialEthclient, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// Connect dials the shared client up front when clients are reused. It is
// a no-op otherwise, or when no RPC endpoint is configured.
func (s *Suite) Connect(ctx context.Context) error {
	if !s.cfg.ReuseClients || s.cfg.Chain.RPCURL == "" || s.shared != nil {
		return nil
	}
	client, err := s.dial(ctx, s.cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to rpc endpoint: %w", err)
	}
	s.shared = client
	return nil
}

// Close releases the shared client, if any.
func (s *Suite) Close() {
	if s.shared != nil {
		s.shared.Close()
		s.shared = nil
	}
}

// withClient runs fn with a client: the shared one when reuse is on, a fresh
// one that is closed afterwards otherwise.
func (s *Suite) withClient(ctx context.Context, fn func(Client) ([]string, error)) ([]string, error) {
	if s.cfg.ReuseClients {
		if s.shared == nil {
			if err := s.Connect(ctx); err != nil {
				return nil, err
			}
		}
		return fn(s.shared)
	}

	client, err := s.dial(ctx, s.cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc endpoint: %w", err)
	}
	defer client.Close()
	s.logger.Debug("dialed fresh rpc client")
	return fn(client)
}

func (s *Suite) rpcCheck(fn func(context.Context, Client) ([]string, error)) check.Func {
	return func(ctx context.Context) ([]string, error) {
		return s.withClient(ctx, func(c Client) ([]string, error) { return fn(ctx, c) })
	}
}

// Definitions returns the checks in the order they should run: connectivity
// first, then chain state, the wallet, and finally contract reads.
func (s *Suite) Definitions() []check.Definition {
	rpcKeys := []string{config.KeyRPCURL}
	contractKeys := []string{config.KeyRPCURL, config.KeyContractAddress}
	walletKeys := []string{config.KeyRPCURL, config.KeyWalletAddress}
	roleKeys := []string{config.KeyRPCURL, config.KeyContractAddress, config.KeyWalletAddress}

	defs := []check.Definition{
		netcheck.Definition("tcp: rpc", s.cfg.Chain.RPCURL, s.cfg.Missing(rpcKeys...), s.dialer),
		{Name: "chain: network", Missing: s.cfg.Missing(rpcKeys...), Run: s.rpcCheck(s.network)},
		{Name: "chain: block number", Missing: s.cfg.Missing(rpcKeys...), Run: s.rpcCheck(s.blockNumber)},
		{Name: "chain: fee data", Missing: s.cfg.Missing(rpcKeys...), Run: s.rpcCheck(s.feeData)},
		{Name: "chain: contract code", Missing: s.cfg.Missing(contractKeys...), Run: s.rpcCheck(s.contractCode)},
		{Name: "chain: wallet balance", Missing: s.cfg.Missing(walletKeys...), Run: s.rpcCheck(s.walletBalance)},
		{Name: "chain: wallet nonce", Missing: s.cfg.Missing(walletKeys...), Run: s.rpcCheck(s.walletNonce)},
	}
	for _, method := range []string{"name", "symbol", "version"} {
		defs = append(defs, check.Definition{
			Name:    "contract: " + method,
			Missing: s.cfg.Missing(contractKeys...),
			Run:     s.rpcCheck(s.contractString(method)),
		})
	}
	defs = append(defs,
		check.Definition{Name: "contract: paused", Missing: s.cfg.Missing(contractKeys...), Run: s.rpcCheck(s.paused)},
		check.Definition{Name: "contract: admin role", Missing: s.cfg.Missing(roleKeys...), Run: s.rpcCheck(s.hasRole(AdminRole))},
		check.Definition{Name: "contract: minter role", Missing: s.cfg.Missing(roleKeys...), Run: s.rpcCheck(s.hasRole(MinterRole))},
		check.Definition{Name: "contract: balance of", Missing: s.cfg.Missing(roleKeys...), Run: s.rpcCheck(s.balanceOf)},
	)
	return defs
}

func (s *Suite) contract() common.Address { return common.HexToAddress(s.cfg.Chain.ContractAddress) }
func (s *Suite) wallet() common.Address   { return common.HexToAddress(s.cfg.Chain.WalletAddress) }

func (s *Suite) network(ctx context.Context, c Client) ([]string, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, rpcError("eth_chainId", err)
	}
	networkID, err := c.NetworkID(ctx)
	if err != nil {
		return nil, rpcError("net_version", err)
	}

	details := []string{
		fmt.Sprintf("chain id: %s", chainID),
		fmt.Sprintf("network id: %s", networkID),
	}
	if name, ok := knownChains[chainID.Uint64()]; ok && chainID.IsUint64() {
		details = append(details, "network: "+name)
	}
	return details, nil
}

func (s *Suite) blockNumber(ctx context.Context, c Client) ([]string, error) {
	number, err := c.BlockNumber(ctx)
	if err != nil {
		return nil, rpcError("eth_blockNumber", err)
	}
	details := []string{fmt.Sprintf("block: %d", number)}

	// The age is informational; nodes that cannot serve headers still pass.
	header, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		details = append(details, fmt.Sprintf("block age: unavailable (%v)", err))
		return details, nil
	}
	age := time.Since(time.Unix(int64(header.Time), 0)).Round(time.Second)
	details = append(details, fmt.Sprintf("block age: %s", age))
	return details, nil
}

func (s *Suite) feeData(ctx context.Context, c Client) ([]string, error) {
	gasPrice, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return nil, rpcError("eth_gasPrice", err)
	}
	details := []string{fmt.Sprintf("gas price: %s gwei", formatUnits(gasPrice, 9))}

	if tip, err := c.SuggestGasTipCap(ctx); err != nil {
		details = append(details, "priority fee: unavailable")
	} else {
		details = append(details, fmt.Sprintf("priority fee: %s gwei", formatUnits(tip, 9)))
	}

	header, err := c.HeaderByNumber(ctx, nil)
	switch {
	case err != nil:
		details = append(details, "base fee: unavailable")
	case header.BaseFee == nil:
		details = append(details, "base fee: none (legacy chain)")
	default:
		details = append(details, fmt.Sprintf("base fee: %s gwei", formatUnits(header.BaseFee, 9)))
	}
	return details, nil
}

func (s *Suite) contractCode(ctx context.Context, c Client) ([]string, error) {
	addr := s.contract()
	code, err := c.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, rpcError("eth_getCode", err)
	}
	details := []string{"address: " + addr.Hex()}
	if len(code) == 0 {
		return append(details, "no code present"), nil
	}
	return append(details, fmt.Sprintf("code size: %d bytes", len(code))), nil
}

func (s *Suite) walletBalance(ctx context.Context, c Client) ([]string, error) {
	addr := s.wallet()
	balance, err := c.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, rpcError("eth_getBalance", err)
	}
	return []string{
		"address: " + addr.Hex(),
		fmt.Sprintf("balance: %s wei", balance),
		fmt.Sprintf("balance: %s ETH", formatUnits(balance, 18)),
	}, nil
}

func (s *Suite) walletNonce(ctx context.Context, c Client) ([]string, error) {
	addr := s.wallet()
	confirmed, err := c.NonceAt(ctx, addr, nil)
	if err != nil {
		return nil, rpcError("eth_getTransactionCount", err)
	}
	pending, err := c.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, rpcError("eth_getTransactionCount (pending)", err)
	}
	return []string{
		"address: " + addr.Hex(),
		fmt.Sprintf("transaction count: %d", confirmed),
		fmt.Sprintf("pending transaction count: %d", pending),
	}, nil
}

func (s *Suite) contractString(method string) func(context.Context, Client) ([]string, error) {
	return func(ctx context.Context, c Client) ([]string, error) {
		v, err := callString(ctx, c, s.contract(), method)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s: %s", method, v)}, nil
	}
}

func (s *Suite) paused(ctx context.Context, c Client) ([]string, error) {
	paused, err := callBool(ctx, c, s.contract(), "paused")
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("paused: %t", paused)}, nil
}

func (s *Suite) hasRole(role Role) func(context.Context, Client) ([]string, error) {
	return func(ctx context.Context, c Client) ([]string, error) {
		account := s.wallet()
		granted, err := callBool(ctx, c, s.contract(), "hasRole", [32]byte(role.Hash), account)
		if err != nil {
			return nil, err
		}
		state := "not granted"
		if granted {
			state = "granted"
		}
		return []string{
			fmt.Sprintf("role: %s (%s)", role.Name, role.Hash.Hex()),
			"account: " + account.Hex(),
			state,
		}, nil
	}
}

func (s *Suite) balanceOf(ctx context.Context, c Client) ([]string, error) {
	account := s.wallet()
	balance, err := callBigInt(ctx, c, s.contract(), "balanceOf", account)
	if err != nil {
		return nil, err
	}
	details := []string{
		"account: " + account.Hex(),
		fmt.Sprintf("raw balance: %s", balance),
	}
	// decimals() is optional in the token interface.
	if decimals, err := callUint8(ctx, c, s.contract(), "decimals"); err == nil {
		details = append(details, fmt.Sprintf("balance: %s (decimals %d)", formatUnits(balance, int(decimals)), decimals))
	}
	return details, nil
}

var knownChains = map[uint64]string{
	1:        "ethereum mainnet",
	10:       "optimism",
	137:      "polygon",
	8453:     "base",
	17000:    "holesky",
	42161:    "arbitrum one",
	80002:    "polygon amoy",
	84532:    "base sepolia",
	11155111: "sepolia",
}

// formatUnits renders v scaled down by 10^decimals without rounding,
// trimming trailing zeros.
func formatUnits(v *big.Int, decimals int) string {
	if decimals == 0 {
		return v.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(v, denom).FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
