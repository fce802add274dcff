package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const shimV1ABI = `[{
	"type":"function","name":"depositForBurn","stateMutability":"payable",
	"inputs":[
		{"name":"amount","type":"uint256"},
		{"name":"destinationChain","type":"uint16"},
		{"name":"destinationDomain","type":"uint32"},
		{"name":"mintRecipient","type":"bytes32"},
		{"name":"burnToken","type":"address"},
		{"name":"executorArgs","type":"tuple","components":[
			{"name":"refundAddress","type":"address"},
			{"name":"signedQuote","type":"bytes"},
			{"name":"instructions","type":"bytes"}]},
		{"name":"feeArgs","type":"tuple","components":[
			{"name":"dbps","type":"uint16"},
			{"name":"payee","type":"address"}]}],
	"outputs":[{"name":"nonce","type":"uint64"}]
}]`

const shimV2ABI = `[{
	"type":"function","name":"depositForBurn","stateMutability":"payable",
	"inputs":[
		{"name":"amount","type":"uint256"},
		{"name":"destinationChain","type":"uint16"},
		{"name":"destinationDomain","type":"uint32"},
		{"name":"mintRecipient","type":"bytes32"},
		{"name":"burnToken","type":"address"},
		{"name":"destinationCaller","type":"bytes32"},
		{"name":"maxFee","type":"uint256"},
		{"name":"minFinalityThreshold","type":"uint32"},
		{"name":"executorArgs","type":"tuple","components":[
			{"name":"refundAddress","type":"address"},
			{"name":"signedQuote","type":"bytes"},
			{"name":"instructions","type":"bytes"}]},
		{"name":"feeArgs","type":"tuple","components":[
			{"name":"dbps","type":"uint16"},
			{"name":"payee","type":"address"}]}],
	"outputs":[{"name":"nonce","type":"uint64"}]
}]`

const erc20ABI = `[
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const messageTransmitterV2ABI = `[
	{"type":"function","name":"usedNonces","stateMutability":"view",
	 "inputs":[{"name":"","type":"bytes32"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"receiveMessage","stateMutability":"nonpayable",
	 "inputs":[{"name":"message","type":"bytes"},{"name":"attestation","type":"bytes"}],
	 "outputs":[{"name":"success","type":"bool"}]}
]`

var (
	shimV1               = mustParseABI(shimV1ABI)
	shimV2               = mustParseABI(shimV2ABI)
	erc20                = mustParseABI(erc20ABI)
	messageTransmitterV2 = mustParseABI(messageTransmitterV2ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ExecutorArgs pays the executor and tells it what to relay.
type ExecutorArgs struct {
	RefundAddress common.Address
	SignedQuote   []byte
	Instructions  []byte
}

// FeeArgs routes the referrer fee.
type FeeArgs struct {
	Dbps  uint16
	Payee common.Address
}

// DepositForBurnV1 is the v1 shim call.
type DepositForBurnV1 struct {
	Amount            *big.Int
	DestinationChain  uint16
	DestinationDomain uint32
	MintRecipient     [32]byte
	BurnToken         common.Address
	ExecutorArgs      ExecutorArgs
	FeeArgs           FeeArgs
}

// DepositForBurnV2 is the v2 shim call.
type DepositForBurnV2 struct {
	DepositForBurnV1
	DestinationCaller    [32]byte
	MaxFee               *big.Int
	MinFinalityThreshold uint32
}

func (d DepositForBurnV1) pack() ([]byte, error) {
	return shimV1.Pack("depositForBurn",
		d.Amount, d.DestinationChain, d.DestinationDomain, d.MintRecipient, d.BurnToken,
		d.ExecutorArgs, d.FeeArgs)
}

func (d DepositForBurnV2) pack() ([]byte, error) {
	maxFee := d.MaxFee
	if maxFee == nil {
		maxFee = new(big.Int)
	}
	return shimV2.Pack("depositForBurn",
		d.Amount, d.DestinationChain, d.DestinationDomain, d.MintRecipient, d.BurnToken,
		d.DestinationCaller, maxFee, d.MinFinalityThreshold,
		d.ExecutorArgs, d.FeeArgs)
}
