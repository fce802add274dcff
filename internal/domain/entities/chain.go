package entities

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Network selects which deployment of the executor and Circle services is used.
type Network string

const (
	NetworkMainnet Network = "Mainnet"
	NetworkTestnet Network = "Testnet"
)

// ParseNetwork accepts the network name case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "mainnet":
		return NetworkMainnet, nil
	case "testnet":
		return NetworkTestnet, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// Platform groups chains that share an address format and executor implementation.
type Platform string

const (
	PlatformEVM    Platform = "Evm"
	PlatformSolana Platform = "Solana"
	PlatformSui    Platform = "Sui"
	PlatformAptos  Platform = "Aptos"
)

// Chain is a chain name as used by the executor API and Wormhole tooling.
type Chain string

const (
	ChainSolana          Chain = "Solana"
	ChainEthereum        Chain = "Ethereum"
	ChainPolygon         Chain = "Polygon"
	ChainAvalanche       Chain = "Avalanche"
	ChainSui             Chain = "Sui"
	ChainAptos           Chain = "Aptos"
	ChainArbitrum        Chain = "Arbitrum"
	ChainOptimism        Chain = "Optimism"
	ChainBase            Chain = "Base"
	ChainSepolia         Chain = "Sepolia"
	ChainArbitrumSepolia Chain = "ArbitrumSepolia"
	ChainBaseSepolia     Chain = "BaseSepolia"
	ChainOptimismSepolia Chain = "OptimismSepolia"
	ChainPolygonSepolia  Chain = "PolygonSepolia"
)

// ChainInfo is static per-chain metadata.
type ChainInfo struct {
	ID             uint16
	Platform       Platform
	NativeDecimals int
	// GasPriceDecimals is the resolution the executor quotes dstGasPrice in.
	GasPriceDecimals int
}

var chainInfo = map[Chain]ChainInfo{
	ChainSolana:          {ID: 1, Platform: PlatformSolana, NativeDecimals: 9, GasPriceDecimals: 9},
	ChainEthereum:        {ID: 2, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainPolygon:         {ID: 5, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainAvalanche:       {ID: 6, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainSui:             {ID: 21, Platform: PlatformSui, NativeDecimals: 9, GasPriceDecimals: 9},
	ChainAptos:           {ID: 22, Platform: PlatformAptos, NativeDecimals: 8, GasPriceDecimals: 8},
	ChainArbitrum:        {ID: 23, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainOptimism:        {ID: 24, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainBase:            {ID: 30, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainSepolia:         {ID: 10002, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainArbitrumSepolia: {ID: 10003, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainBaseSepolia:     {ID: 10004, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainOptimismSepolia: {ID: 10005, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
	ChainPolygonSepolia:  {ID: 10007, Platform: PlatformEVM, NativeDecimals: 18, GasPriceDecimals: 18},
}

// Info returns static metadata for c.
func (c Chain) Info() (ChainInfo, bool) {
	info, ok := chainInfo[c]
	return info, ok
}

// ID returns the numeric chain id used on the wire, or 0 if c is unknown.
func (c Chain) ID() uint16 {
	return chainInfo[c].ID
}

func (c Chain) Platform() Platform {
	return chainInfo[c].Platform
}

// ChainFromID maps a numeric chain id back to its name.
func ChainFromID(id uint16) (Chain, bool) {
	for c, info := range chainInfo {
		if info.ID == id {
			return c, true
		}
	}
	return "", false
}

// ParseChain accepts a chain name case-insensitively.
func ParseChain(s string) (Chain, error) {
	for c := range chainInfo {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown chain %q", s)
}

// NativeSymbol is the ticker of the chain's gas token.
func (c Chain) NativeSymbol() string {
	switch c {
	case ChainSolana:
		return "SOL"
	case ChainPolygon, ChainPolygonSepolia:
		return "POL"
	case ChainAvalanche:
		return "AVAX"
	case ChainSui:
		return "SUI"
	case ChainAptos:
		return "APT"
	default:
		return "ETH"
	}
}

var circleDomains = map[Network]map[Chain]uint32{
	NetworkMainnet: {
		ChainEthereum:  0,
		ChainAvalanche: 1,
		ChainOptimism:  2,
		ChainArbitrum:  3,
		ChainSolana:    5,
		ChainBase:      6,
		ChainPolygon:   7,
		ChainSui:       8,
		ChainAptos:     9,
	},
	NetworkTestnet: {
		ChainSepolia:         0,
		ChainAvalanche:       1,
		ChainOptimismSepolia: 2,
		ChainArbitrumSepolia: 3,
		ChainSolana:          5,
		ChainBaseSepolia:     6,
		ChainPolygonSepolia:  7,
		ChainSui:             8,
		ChainAptos:           9,
	},
}

// CircleDomain returns Circle's numeric domain for c on network.
func CircleDomain(network Network, c Chain) (uint32, bool) {
	d, ok := circleDomains[network][c]
	return d, ok
}

// ChainForCircleDomain is the inverse of CircleDomain.
func ChainForCircleDomain(network Network, domain uint32) (Chain, bool) {
	for c, d := range circleDomains[network] {
		if d == domain {
			return c, true
		}
	}
	return "", false
}

// ParseAddress converts a native address string for c into its 32-byte
// universal form.
func ParseAddress(c Chain, s string) (layout.UniversalAddress, error) {
	switch c.Platform() {
	case PlatformEVM:
		if !common.IsHexAddress(s) {
			return layout.ZeroAddress, fmt.Errorf("invalid %s address %q", c, s)
		}
		return layout.UniversalAddressFromBytes(common.HexToAddress(s).Bytes())
	case PlatformSolana:
		b, err := base58.Decode(s)
		if err != nil || len(b) != 32 {
			return layout.ZeroAddress, fmt.Errorf("invalid %s address %q", c, s)
		}
		return layout.UniversalAddressFromBytes(b)
	case PlatformSui, PlatformAptos:
		b, err := layout.DecodeHex(s)
		if err != nil || len(b) == 0 || len(b) > 32 {
			return layout.ZeroAddress, fmt.Errorf("invalid %s address %q", c, s)
		}
		return layout.UniversalAddressFromBytes(b)
	default:
		return layout.ZeroAddress, fmt.Errorf("unsupported chain %q", c)
	}
}

// FormatAddress renders a universal address in c's native format.
func FormatAddress(c Chain, a layout.UniversalAddress) string {
	switch c.Platform() {
	case PlatformEVM:
		return common.BytesToAddress(a[12:]).Hex()
	case PlatformSolana:
		return base58.Encode(a[:])
	default:
		return a.Hex()
	}
}

// ChainAddress is an address qualified by its chain.
type ChainAddress struct {
	Chain   Chain  `json:"chain"`
	Address string `json:"address"`
}

// Universal parses the address for its chain.
func (a ChainAddress) Universal() (layout.UniversalAddress, error) {
	return ParseAddress(a.Chain, a.Address)
}
