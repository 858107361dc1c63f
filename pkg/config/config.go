// Package config holds every option probe recognizes. Options come from the
// environment only; Load reads them once, applies defaults and validates
// whatever is set. Unset credentials are not an error: the checks that need
// them are skipped.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Recognized environment variables.
const (
	KeyRPCURL          = "RPC_URL"
	KeyPrivateKey      = "PRIVATE_KEY"
	KeyWalletAddress   = "WALLET_ADDRESS"
	KeyContractAddress = "CONTRACT_ADDRESS"

	KeyCDSEClientID     = "CDSE_CLIENT_ID"
	KeyCDSEClientSecret = "CDSE_CLIENT_SECRET"
	KeyCDSETokenURL     = "CDSE_TOKEN_URL"
	KeyCDSESTACURL      = "CDSE_STAC_URL"
	KeyCDSECollection   = "CDSE_COLLECTION"
	KeyCDSEItemLimit    = "CDSE_ITEM_LIMIT"

	KeyEarthdataToken       = "NASA_EARTHDATA_TOKEN"
	KeyEarthdataCMRURL      = "EARTHDATA_CMR_URL"
	KeyEarthdataCollections = "EARTHDATA_COLLECTIONS"

	KeyTimeout      = "PROBE_TIMEOUT"
	KeyReuseClients = "PROBE_REUSE_CLIENTS"
	KeyLogLevel     = "LOG_LEVEL"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultCDSETokenURL         = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	DefaultCDSESTACURL          = "https://catalogue.dataspace.copernicus.eu/stac"
	DefaultCDSECollection       = "sentinel-2-l2a"
	DefaultCDSEItemLimit        = 5
	DefaultEarthdataCMRURL      = "https://cmr.earthdata.nasa.gov"
	DefaultEarthdataCollections = "HLSL30,HLSS30"
	DefaultTimeout              = 30 * time.Second
	DefaultLogLevel             = "warn"
)

// Chain configures the blockchain JSON-RPC checks.
type Chain struct {
	RPCURL          string
	PrivateKey      string // hex, with or without 0x; only used to derive WalletAddress
	WalletAddress   string // explicit, or derived from PrivateKey
	ContractAddress string
}

// CDSE configures the Copernicus Data Space checks.
type CDSE struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	STACURL      string
	Collection   string
	ItemLimit    int
}

// Earthdata configures the NASA Earthdata checks.
type Earthdata struct {
	Token       string
	CMRURL      string
	Collections []string
}

// Config is the validated configuration of one probe run.
type Config struct {
	Chain     Chain
	CDSE      CDSE
	Earthdata Earthdata

	Timeout      time.Duration // bounded wait per check
	ReuseClients bool          // share one client/token per suite instead of one per check
	LogLevel     string
}

// Load reads the configuration through getter, applies defaults and
// validates every value that is set.
func Load(getter EnvGetter) (Config, error) {
	get := func(key string) string {
		v, _ := getter.LookupEnv(key)
		return strings.TrimSpace(v)
	}
	orDefault := func(key, def string) string {
		if v := get(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Chain: Chain{
			RPCURL:          get(KeyRPCURL),
			PrivateKey:      get(KeyPrivateKey),
			WalletAddress:   get(KeyWalletAddress),
			ContractAddress: get(KeyContractAddress),
		},
		CDSE: CDSE{
			ClientID:     get(KeyCDSEClientID),
			ClientSecret: get(KeyCDSEClientSecret),
			TokenURL:     orDefault(KeyCDSETokenURL, DefaultCDSETokenURL),
			STACURL:      strings.TrimRight(orDefault(KeyCDSESTACURL, DefaultCDSESTACURL), "/"),
			Collection:   orDefault(KeyCDSECollection, DefaultCDSECollection),
			ItemLimit:    DefaultCDSEItemLimit,
		},
		Earthdata: Earthdata{
			Token:       get(KeyEarthdataToken),
			CMRURL:      strings.TrimRight(orDefault(KeyEarthdataCMRURL, DefaultEarthdataCMRURL), "/"),
			Collections: splitList(orDefault(KeyEarthdataCollections, DefaultEarthdataCollections)),
		},
		Timeout:  DefaultTimeout,
		LogLevel: orDefault(KeyLogLevel, DefaultLogLevel),
	}

	var errs []error

	if v := get(KeyCDSEItemLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("%s: want a positive integer, got %q", KeyCDSEItemLimit, v))
		} else {
			cfg.CDSE.ItemLimit = n
		}
	}
	if v := get(KeyTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive duration like 30s, got %q", KeyTimeout, v))
		} else {
			cfg.Timeout = d
		}
	}
	if v := get(KeyReuseClients); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: want true or false, got %q", KeyReuseClients, v))
		} else {
			cfg.ReuseClients = b
		}
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	for _, u := range []struct{ key, value string }{
		{KeyRPCURL, c.Chain.RPCURL},
		{KeyCDSETokenURL, c.CDSE.TokenURL},
		{KeyCDSESTACURL, c.CDSE.STACURL},
		{KeyEarthdataCMRURL, c.Earthdata.CMRURL},
	} {
		if u.value == "" {
			continue
		}
		if err := validateURL(u.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.key, err))
		}
	}

	if c.Chain.ContractAddress != "" && !common.IsHexAddress(c.Chain.ContractAddress) {
		errs = append(errs, fmt.Errorf("%s: not a hex address: %q", KeyContractAddress, c.Chain.ContractAddress))
	}
	if c.Chain.WalletAddress != "" && !common.IsHexAddress(c.Chain.WalletAddress) {
		errs = append(errs, fmt.Errorf("%s: not a hex address: %q", KeyWalletAddress, c.Chain.WalletAddress))
	}
	if c.Chain.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(c.Chain.PrivateKey, "0x"))
		if err != nil {
			// The key itself never goes into the message.
			errs = append(errs, fmt.Errorf("%s: invalid private key", KeyPrivateKey))
		} else if c.Chain.WalletAddress == "" {
			c.Chain.WalletAddress = crypto.PubkeyToAddress(key.PublicKey).Hex()
		}
	}
	if len(c.Earthdata.Collections) == 0 {
		errs = append(errs, fmt.Errorf("%s: no collection short names", KeyEarthdataCollections))
	}

	return errors.Join(errs...)
}

// Missing returns the keys among keys whose values are unset. KeyWalletAddress
// counts as set when a private key was given instead.
func (c Config) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if c.value(key) != "" {
			continue
		}
		if key == KeyWalletAddress {
			missing = append(missing, KeyWalletAddress+" or "+KeyPrivateKey)
			continue
		}
		missing = append(missing, key)
	}
	return missing
}

func (c Config) value(key string) string {
	switch key {
	case KeyRPCURL:
		return c.Chain.RPCURL
	case KeyPrivateKey:
		return c.Chain.PrivateKey
	case KeyWalletAddress:
		return c.Chain.WalletAddress
	case KeyContractAddress:
		return c.Chain.ContractAddress
	case KeyCDSEClientID:
		return c.CDSE.ClientID
	case KeyCDSEClientSecret:
		return c.CDSE.ClientSecret
	case KeyCDSETokenURL:
		return c.CDSE.TokenURL
	case KeyCDSESTACURL:
		return c.CDSE.STACURL
	case KeyCDSECollection:
		return c.CDSE.Collection
	case KeyCDSEItemLimit:
		return strconv.Itoa(c.CDSE.ItemLimit)
	case KeyEarthdataToken:
		return c.Earthdata.Token
	case KeyEarthdataCMRURL:
		return c.Earthdata.CMRURL
	case KeyEarthdataCollections:
		return strings.Join(c.Earthdata.Collections, ",")
	case KeyTimeout:
		return c.Timeout.String()
	case KeyReuseClients:
		return strconv.FormatBool(c.ReuseClients)
	case KeyLogLevel:
		return c.LogLevel
	default:
		return ""
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL: %s", raw)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
