package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/chain"
	"github.com/thrylos-labs/posseal/config"
	"github.com/thrylos-labs/posseal/consensus/sealer"
	"github.com/thrylos-labs/posseal/consensus/selection"
	"github.com/thrylos-labs/posseal/consensus/staking"
	"github.com/thrylos-labs/posseal/crypto/hash"
	"github.com/thrylos-labs/posseal/metrics"
	"github.com/thrylos-labs/posseal/store"
	"github.com/thrylos-labs/posseal/types"
	"github.com/thrylos-labs/posseal/utils"
	"go.uber.org/zap"
)

// StakingPool receives the funds a validator locks when it registers at
// runtime. Stakes configured for genesis never enter the ledger.
const StakingPool = "staking_pool"

type Node struct {
	// Everything that changes state goes through mu.
	mu sync.Mutex

	cfg      *config.Config
	registry *staking.Registry
	sealer   *sealer.Sealer
	chain    *chain.Blockchain
	store    *store.BlockStore

	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

type options struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	source   selection.Source
	now      func() time.Time
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPrometheusRegistry registers the node's collectors with reg instead
// of a private registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithSource overrides the random source derived from Config.Seed.
func WithSource(src selection.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewNode opens the store, restores or registers the validator set and
// loads or creates the chain described by cfg.
func NewNode(cfg *config.Config, opts ...Option) (*Node, error) {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *store.Database
		err error
	)
	if cfg.DataDir == "" {
		db, err = store.NewInMemoryDatabase()
	} else {
		db, err = store.NewDatabase(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	n, err := newNode(cfg, db, o)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

func newNode(cfg *config.Config, db *store.Database, o options) (*Node, error) {
	bs, err := store.NewBlockStore(db)
	if err != nil {
		return nil, err
	}

	registry := staking.NewRegistry()
	allocations := cfg.Allocations()
	saved, err := bs.LoadValidators()
	if err != nil {
		return nil, fmt.Errorf("failed to load validators: %w", err)
	}
	if saved != nil {
		if err := registry.Restore(saved); err != nil {
			return nil, fmt.Errorf("failed to restore validators: %w", err)
		}
		// Genesis stakes never reach the ledger.
		for _, p := range cfg.Nodes {
			if rest, err := p.Balance.Sub(p.Stake); err == nil {
				allocations[p.Address] = rest
			}
		}
		o.logger.Info("validator set restored", zap.Int("validators", len(saved)))
	} else {
		for _, p := range cfg.Nodes {
			if p.Stake == 0 {
				continue
			}
			_, rest, err := registry.RegisterValidator(types.Node{Address: p.Address, Balance: p.Balance}, p.Stake)
			if err != nil {
				return nil, fmt.Errorf("failed to register %s: %w", p.Name, err)
			}
			allocations[p.Address] = rest.Balance
		}
		if err := bs.SaveValidators(registry.Entries()); err != nil {
			return nil, fmt.Errorf("failed to save validators: %w", err)
		}
	}

	source := o.source
	if source == nil && cfg.Seed != 0 {
		source = selection.NewSeededSource(cfg.Seed)
	}
	selOpts := []selection.Option{selection.WithAgeWeight(cfg.AgeWeight())}
	if source != nil {
		selOpts = append(selOpts, selection.WithSource(source))
	}
	strategy, err := selection.New(cfg.Strategy, selOpts...)
	if err != nil {
		return nil, err
	}
	policy, err := sealer.ParseAgePolicy(cfg.AgePolicy)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.New(o.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	bc, err := chain.NewBlockchain(chain.BlockchainConfig{
		GenesisTime:        cfg.GenesisTime,
		GenesisAllocations: allocations,
		BlockReward:        cfg.BlockReward,
		IsValidator: func(address string) bool {
			_, ok := registry.Get(address)
			return ok
		},
		Store:  bs,
		Logger: o.logger.Named("chain"),
		Now:    o.now,
	})
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		registry: registry,
		sealer: sealer.New(registry, strategy,
			sealer.WithAgePolicy(policy),
			sealer.WithLogger(o.logger.Named("sealer")),
			sealer.WithMetrics(collector)),
		chain:    bc,
		store:    bs,
		metrics:  collector,
		gatherer: o.registry,
		logger:   o.logger,
	}
	collector.SetValidators(registry.Len())
	collector.SetHeight(bc.Height())

	o.logger.Info("node ready",
		zap.String("strategy", strategy.Name()),
		zap.String("agePolicy", policy.String()),
		zap.Int("validators", registry.Len()),
		zap.Int("height", bc.Height()))
	return n, nil
}

// RegisterValidator stakes part of address's confirmed balance. The stake
// moves to StakingPool through a pending transaction. On error neither the
// registry nor the pending pool has changed.
func (n *Node) RegisterValidator(address string, stake amount.Amount) (types.ValidatorEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	snapshot := n.registry.Entries()
	balance := n.chain.GetBalanceOfAddress(address)
	entry, _, err := n.registry.RegisterValidator(types.Node{Address: address, Balance: balance}, stake)
	if err != nil {
		return types.ValidatorEntry{}, err
	}

	tx, err := n.chain.CreateTransaction(types.Transaction{From: address, To: StakingPool, Amount: stake})
	if err != nil {
		n.restoreRegistry(snapshot)
		if errors.Is(err, chain.ErrInsufficientFunds) {
			return types.ValidatorEntry{}, fmt.Errorf("%w: %v", staking.ErrInsufficientBalance, err)
		}
		return types.ValidatorEntry{}, err
	}
	if err := n.store.SaveValidators(n.registry.Entries()); err != nil {
		n.restoreRegistry(snapshot)
		if rmErr := n.chain.RemovePending(tx.ID); rmErr != nil {
			utils.LogError(n.logger, "drop stake transfer", rmErr)
		}
		return types.ValidatorEntry{}, fmt.Errorf("failed to save validators: %w", err)
	}
	n.metrics.SetValidators(n.registry.Len())
	n.logger.Info("validator registered", zap.String("address", address), zap.String("stake", stake.String()))
	return entry, nil
}

func (n *Node) restoreRegistry(snapshot []types.ValidatorEntry) {
	if err := n.registry.Restore(snapshot); err != nil {
		utils.LogError(n.logger, "restore validators", err)
	}
}

// SubmitTransaction queues a transfer for the next block.
func (n *Node) SubmitTransaction(from, to string, value amount.Amount) (types.Transaction, error) {
	return n.chain.CreateTransaction(types.Transaction{From: from, To: to, Amount: value})
}

// SealNext drafts a block from the pending pool, seals it and appends it to
// the chain. sealer.ErrNoEligibleValidator is returned unchanged so callers
// can skip the round. If the block cannot be persisted the registry is put
// back as it was before the round.
func (n *Node) SealNext() (*types.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	snapshot := n.registry.Entries()
	sealed, err := n.sealer.Seal(n.chain.DraftBlock())
	if err != nil {
		return nil, err
	}
	if err := n.chain.PersistSealedBlock(sealed); err != nil {
		// No block was appended, so the ages go back too.
		n.restoreRegistry(snapshot)
		return nil, fmt.Errorf("failed to persist sealed block: %w", err)
	}
	if err := n.store.SaveValidators(n.registry.Entries()); err != nil {
		return nil, fmt.Errorf("failed to save validators: %w", err)
	}
	n.metrics.SetHeight(n.chain.Height())
	return sealed, nil
}

// BlockByHash reads a sealed block through the store's cache.
func (n *Node) BlockByHash(h hash.Hash) (*types.Block, error) {
	return n.store.GetBlock(h)
}

func (n *Node) Config() *config.Config {
	return n.cfg
}

func (n *Node) Chain() *chain.Blockchain {
	return n.chain
}

func (n *Node) Validators() []types.ValidatorEntry {
	return n.registry.Entries()
}

func (n *Node) Strategy() string {
	return n.sealer.Strategy().Name()
}

func (n *Node) Gatherer() prometheus.Gatherer {
	return n.gatherer
}

func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Close()
}
