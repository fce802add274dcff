package di

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	"github.com/rail-service/cctp_executor/internal/domain/services/attestation"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/internal/domain/services/quote"
	"github.com/rail-service/cctp_executor/internal/domain/services/route"
	"github.com/rail-service/cctp_executor/internal/domain/services/tracker"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/evm"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/executorapi"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/solana"
	"github.com/rail-service/cctp_executor/internal/infrastructure/cache"
	"github.com/rail-service/cctp_executor/internal/infrastructure/config"
	"github.com/rail-service/cctp_executor/internal/workers/transfer_watcher"
	"github.com/rail-service/cctp_executor/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	ZapLog  *zap.Logger
	Network entities.Network

	Redis    cache.RedisClient
	Receipts *cache.ReceiptStore

	ExecutorAPI *executorapi.Client
	Circle      *cctp.Client
	SolanaRPC   *solana.Client

	Executors    *executor.Registry
	Quotes       *quote.Service
	Attestations *attestation.Service
	Tracker      *tracker.Tracker
	Routes       *route.Set
	Watcher      *transfer_watcher.Worker

	ethClients []*ethclient.Client
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, redis cache.RedisClient, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	network, err := entities.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		ZapLog:  zapLog,
		Network: network,
		Redis:   redis,
	}

	// Initialize external services
	c.ExecutorAPI = executorapi.NewClient(executorapi.Config{
		BaseURL:    cfg.ExecutorAPI.BaseURL,
		Network:    network,
		Timeout:    time.Duration(cfg.ExecutorAPI.Timeout) * time.Second,
		MaxRetries: cfg.ExecutorAPI.MaxRetries,
	}, zapLog)

	circleEnv := "sandbox"
	if network == entities.NetworkMainnet {
		circleEnv = "mainnet"
	}
	c.Circle = cctp.NewClient(cctp.Config{
		BaseURL:     cfg.Circle.BaseURL,
		Environment: circleEnv,
		Timeout:     time.Duration(cfg.Circle.Timeout) * time.Second,
		MaxRetries:  cfg.Circle.MaxRetries,
	}, zapLog)

	c.SolanaRPC = solana.NewClient(solana.Config{
		RPCURL:  cfg.Solana.RPCURL,
		Timeout: time.Duration(cfg.Solana.Timeout) * time.Second,
	}, zapLog)

	// Initialize chain executors
	solanaExecutor, err := solana.NewExecutor(solana.ExecutorConfig{
		Network:              network,
		MessageTransmitterV2: cfg.Solana.MessageTransmitterV2,
	}, c.SolanaRPC, zapLog)
	if err != nil {
		return nil, fmt.Errorf("solana executor: %w", err)
	}

	entries := []executor.Entry{{Protocol: entities.ProtocolCCTPv2, Executor: solanaExecutor}}
	evmEntries, err := c.buildEVMExecutors(ctx, solanaExecutor)
	if err != nil {
		c.Close()
		return nil, err
	}
	entries = append(entries, evmEntries...)

	c.Executors, err = executor.NewRegistry(network, entries...)
	if err != nil {
		c.Close()
		return nil, err
	}

	// Initialize domain services
	gasLimits, err := mergeGasLimits(entities.DefaultGasLimits[network], cfg.GasLimits)
	if err != nil {
		c.Close()
		return nil, err
	}
	referrers, err := mergeReferrers(entities.DefaultReferrers[network], cfg.Referrer.Addresses)
	if err != nil {
		c.Close()
		return nil, err
	}
	var feeThreshold *big.Int
	if cfg.Referrer.FeeThreshold > 0 {
		feeThreshold = big.NewInt(cfg.Referrer.FeeThreshold)
	}

	c.Quotes = quote.NewService(quote.Config{
		Network:               network,
		GasLimits:             gasLimits,
		Referrers:             referrers,
		ReferrerFeeDbps:       uint16(cfg.Referrer.FeeDbps),
		FeeThreshold:          feeThreshold,
		SolanaMsgValueBaseFee: cfg.Solana.MsgValueBaseFee,
	}, c.ExecutorAPI, solanaExecutor, solanaExecutor, zapLog)

	c.Attestations = attestation.NewService(c.Circle, network, zapLog)
	c.Tracker = tracker.New(c.ExecutorAPI, c.Attestations, c.Executors, cfg.Tracker.PollIntervalDuration(), zapLog)

	c.Routes, err = c.buildRoutes()
	if err != nil {
		c.Close()
		return nil, err
	}

	// Persistence and background tracking
	c.Receipts = cache.NewReceiptStore(redis, zapLog)
	c.Watcher = transfer_watcher.NewWorker(c.Receipts, c.Routes, transfer_watcher.Config{
		Schedule:     cfg.Watcher.Schedule,
		TrackTimeout: time.Duration(cfg.Watcher.TrackTimeout) * time.Second,
	}, zapLog)

	zapLog.Info("Container initialized",
		zap.String("network", string(network)),
		zap.Int("evm_chains", len(c.ethClients)),
		zap.Any("routes", c.Routes.Kinds()))
	return c, nil
}

// buildEVMExecutors dials every configured EVM chain and registers a v1
// executor where a v1 shim is known and a v2 executor where a v2 shim is
// configured.
func (c *Container) buildEVMExecutors(ctx context.Context, tokenAccounts executor.TokenAccountResolver) ([]executor.Entry, error) {
	var entries []executor.Entry
	for name, chainCfg := range c.Config.EVM {
		chain, err := entities.ParseChain(name)
		if err != nil {
			return nil, fmt.Errorf("evm.%s: %w", name, err)
		}

		client, err := ethclient.DialContext(ctx, chainCfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial %s rpc: %w", chain, err)
		}
		c.ethClients = append(c.ethClients, client)

		shimV1 := chainCfg.ShimV1
		if shimV1 == "" {
			shimV1 = entities.ShimContractsV1[c.Network][chain]
		}
		if shimV1 != "" {
			ex, err := evm.NewExecutor(evm.ExecutorConfig{
				Network:       c.Network,
				Chain:         chain,
				Protocol:      entities.ProtocolCCTPv1,
				Shim:          shimV1,
				TokenAccounts: tokenAccounts,
			}, client, c.ZapLog)
			if err != nil {
				return nil, fmt.Errorf("%s v1 executor: %w", chain, err)
			}
			entries = append(entries, executor.Entry{Protocol: entities.ProtocolCCTPv1, Executor: ex})
		}

		if chainCfg.ShimV2 != "" {
			ex, err := evm.NewExecutor(evm.ExecutorConfig{
				Network:            c.Network,
				Chain:              chain,
				Protocol:           entities.ProtocolCCTPv2,
				Shim:               chainCfg.ShimV2,
				MessageTransmitter: chainCfg.MessageTransmitterV2,
				TokenAccounts:      tokenAccounts,
			}, client, c.ZapLog)
			if err != nil {
				return nil, fmt.Errorf("%s v2 executor: %w", chain, err)
			}
			entries = append(entries, executor.Entry{Protocol: entities.ProtocolCCTPv2, Executor: ex})
		}

		c.ZapLog.Info("EVM chain configured",
			zap.String("chain", string(chain)),
			zap.Bool("cctp_v1", shimV1 != ""),
			zap.Bool("cctp_v2", chainCfg.ShimV2 != ""))
	}
	return entries, nil
}

func (c *Container) buildRoutes() (*route.Set, error) {
	deps := route.Dependencies{
		Quotes:       c.Quotes,
		BurnFees:     c.Circle,
		Attestations: c.Attestations,
		Tracker:      c.Tracker,
		Executors:    c.Executors,
		Status:       c.ExecutorAPI,
	}
	routeCfg := route.Config{
		Network:               c.Network,
		ReferrerFeeDbps:       uint16(c.Config.Referrer.FeeDbps),
		EstimatorToleranceBps: c.Config.Estimator.ToleranceBps,
		TrackTimeout:          c.Config.Tracker.TimeoutDuration(),
	}

	routes := make([]*route.Route, 0, len(route.Kinds))
	for _, kind := range route.Kinds {
		r, err := route.New(kind, routeCfg, deps, c.ZapLog)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", kind, err)
		}
		routes = append(routes, r)
	}
	return route.NewSet(routes...), nil
}

// Close releases chain RPC connections
func (c *Container) Close() {
	for _, client := range c.ethClients {
		client.Close()
	}
	c.ethClients = nil
}
