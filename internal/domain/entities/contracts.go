package entities

import "time"

// Executor API deployments.
const (
	ExecutorAPIMainnetURL = "https://executor.labsapis.com"
	ExecutorAPITestnetURL = "https://executor-testnet.labsapis.com"
)

// ExecutorAPIBaseURL returns the default executor API for network.
func ExecutorAPIBaseURL(network Network) string {
	if network == NetworkTestnet {
		return ExecutorAPITestnetURL
	}
	return ExecutorAPIMainnetURL
}

// Referrer fee defaults, in tenths of basis points.
const (
	DefaultReferrerFeeDbps = 10
	MaxReferrerFeeDbps     = 65535
)

// USDCDecimals is fixed for every chain CCTP supports.
const USDCDecimals = 6

// Solana destination account sizing.
const (
	// SolanaTokenAccountSize is the length of an SPL token account.
	SolanaTokenAccountSize = 165
	// SolanaMsgValueBaseFee is added to msgValue for every Solana destination,
	// in lamports.
	SolanaMsgValueBaseFee uint64 = 15_000
)

// Circle finality thresholds for CCTP v2 burns.
const (
	FinalityThresholdConfirmed uint32 = 1000
	FinalityThresholdFinalized uint32 = 2000
)

var usdcContracts = map[Network]map[Chain]string{
	NetworkMainnet: {
		ChainEthereum:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		ChainAvalanche: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		ChainOptimism:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		ChainArbitrum:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		ChainSolana:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		ChainBase:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ChainPolygon:   "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		ChainSui:       "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7",
		ChainAptos:     "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b",
	},
	NetworkTestnet: {
		ChainSepolia:         "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		ChainAvalanche:       "0x5425890298aed601595a70AB815c96711a31Bc65",
		ChainOptimismSepolia: "0x5fd84259d66Cd46123540766Be93DFE6D43130D7",
		ChainArbitrumSepolia: "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
		ChainSolana:          "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		ChainBaseSepolia:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		ChainPolygonSepolia:  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		ChainSui:             "0xa1ec7fc00a6f40db9693ad1415d0c193ad3906494428cf252621037bd7117e29",
		ChainAptos:           "0x69091fbab5f7d635ee7ac5098cf0c1efbe31d68fec0f2cd565e8d168daf52832",
	},
}

// USDCContract returns the USDC token address for c on network.
func USDCContract(network Network, c Chain) (string, bool) {
	addr, ok := usdcContracts[network][c]
	return addr, ok
}

// SupportedChains lists the chains with a known USDC deployment on network.
func SupportedChains(network Network) []Chain {
	out := make([]Chain, 0, len(usdcContracts[network]))
	for c := range usdcContracts[network] {
		out = append(out, c)
	}
	return out
}

// ShimContractsV1 are the executor-aware CCTP v1 entry points.
var ShimContractsV1 = map[Network]map[Chain]string{
	NetworkTestnet: {
		ChainSepolia:     "0x4Cbf94024Ff07a7cd69d687084d67773Fc6ef925",
		ChainBaseSepolia: "0x17166DEC8502769eBD6D30112098a4588eA2e88A",
		ChainAvalanche:   "0x0254356716c59a3DA3C0e19EFf58511ba7f0002F",
	},
}

// DefaultReferrers is who receives the referrer fee per source chain.
var DefaultReferrers = map[Network]map[Chain]string{
	NetworkTestnet: {
		ChainSepolia:     "0x8F26A0025dcCc6Cfc07A7d38756280a10E295ad7",
		ChainBaseSepolia: "0x8F26A0025dcCc6Cfc07A7d38756280a10E295ad7",
		ChainAvalanche:   "0x8F26A0025dcCc6Cfc07A7d38756280a10E295ad7",
	},
}

// DefaultGasLimits is the fixed destination gas limit per chain.
var DefaultGasLimits = map[Network]map[Chain]uint64{
	NetworkTestnet: {
		ChainSepolia:     200_000,
		ChainBaseSepolia: 200_000,
		ChainAvalanche:   200_000,
		ChainSolana:      250_000,
		ChainSui:         800_000,
	},
}

// finalityEstimates approximate how long a source chain takes to finalize a burn.
var finalityEstimates = map[Chain]time.Duration{
	ChainEthereum:        15 * time.Minute,
	ChainSepolia:         15 * time.Minute,
	ChainArbitrum:        15 * time.Minute,
	ChainArbitrumSepolia: 15 * time.Minute,
	ChainOptimism:        15 * time.Minute,
	ChainOptimismSepolia: 15 * time.Minute,
	ChainBase:            15 * time.Minute,
	ChainBaseSepolia:     15 * time.Minute,
	ChainAvalanche:       2 * time.Second,
	ChainSolana:          13 * time.Second,
	ChainSui:             3 * time.Second,
	ChainAptos:           3 * time.Second,
}

// fastAttestationEstimates apply to CCTP v2 fast transfers, which are attested at
// the CONFIRMED threshold.
var fastAttestationEstimates = map[Chain]time.Duration{
	ChainEthereum: 20 * time.Second,
	ChainSepolia:  20 * time.Second,
}

const (
	polygonCheckpointBlocks = 2000
	polygonBlockTime        = 200 * time.Millisecond
	defaultFinalityEstimate = time.Minute
	fastDefaultEstimate     = 8 * time.Second
)

// EstimateTransferTime approximates source finality plus one second of
// relay latency.
func EstimateTransferTime(source Chain, fast bool) time.Duration {
	if fast {
		if d, ok := fastAttestationEstimates[source]; ok {
			return d + time.Second
		}
		return fastDefaultEstimate + time.Second
	}
	if source == ChainPolygon || source == ChainPolygonSepolia {
		return polygonCheckpointBlocks * polygonBlockTime
	}
	if d, ok := finalityEstimates[source]; ok {
		return d + time.Second
	}
	return defaultFinalityEstimate + time.Second
}
