package sealer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/thrylos-labs/posseal/consensus/selection"
	"github.com/thrylos-labs/posseal/metrics"
	"github.com/thrylos-labs/posseal/types"
	"go.uber.org/zap"
)

var (
	ErrNoEligibleValidator = errors.New("no eligible validator")
	ErrAlreadySealed       = errors.New("block is already sealed")
	ErrNilBlock            = errors.New("no block to seal")
	ErrUnknownAgePolicy    = errors.New("unknown age policy")
)

// AgePolicy decides how coin age changes after a block is sealed.
type AgePolicy int

const (
	// IncrementAll ages every validator by one round, the winner included.
	IncrementAll AgePolicy = iota
	// ResetWinner ages every validator except the winner, whose age drops to zero.
	ResetWinner
)

func (p AgePolicy) String() string {
	switch p {
	case IncrementAll:
		return "increment-all"
	case ResetWinner:
		return "reset-winner"
	default:
		return fmt.Sprintf("AgePolicy(%d)", int(p))
	}
}

func ParseAgePolicy(s string) (AgePolicy, error) {
	switch strings.ToLower(s) {
	case "", "increment-all":
		return IncrementAll, nil
	case "reset-winner":
		return ResetWinner, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAgePolicy, s)
	}
}

// Registry is what the sealer needs from the validator set.
type Registry interface {
	selection.Registry
	AccrueAge(winner string, resetWinner bool) error
}

// Sealer runs sealing rounds against one registry with one strategy.
// Rounds are serialized, so select and the age update happen as one step.
type Sealer struct {
	mu       sync.Mutex
	registry Registry
	strategy selection.Strategy
	policy   AgePolicy
	logger   *zap.Logger
	metrics  *metrics.Collector
}

type Option func(*Sealer)

func WithAgePolicy(p AgePolicy) Option {
	return func(s *Sealer) {
		s.policy = p
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Sealer) {
		s.logger = l
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Sealer) {
		s.metrics = c
	}
}

func New(registry Registry, strategy selection.Strategy, opts ...Option) *Sealer {
	s := &Sealer{
		registry: registry,
		strategy: strategy,
		policy:   IncrementAll,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sealer) Strategy() selection.Strategy {
	return s.strategy
}

func (s *Sealer) Policy() AgePolicy {
	return s.policy
}

// Seal chooses a validator for draft and returns a sealed copy carrying the
// validator and the content hash. The draft itself is never modified; on
// error neither the draft nor the registry has changed.
func (s *Sealer) Seal(draft *types.Block) (*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	name := s.strategy.Name()

	if draft == nil {
		s.metrics.ObserveRound(name, metrics.OutcomeFailed, time.Since(start))
		return nil, ErrNilBlock
	}
	if draft.IsSealed() {
		s.metrics.ObserveRound(name, metrics.OutcomeFailed, time.Since(start))
		return nil, ErrAlreadySealed
	}

	h, err := types.ContentHash(draft)
	if err != nil {
		s.metrics.ObserveRound(name, metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}

	winner, ok := s.strategy.Select(s.registry)
	if !ok {
		s.metrics.ObserveRound(name, metrics.OutcomeSkipped, time.Since(start))
		s.logger.Warn("no eligible validator, block not sealed", zap.String("strategy", name))
		return nil, ErrNoEligibleValidator
	}

	sealed := draft.Clone()
	sealed.Validator = winner
	sealed.Hash = h

	if err := s.registry.AccrueAge(winner, s.policy == ResetWinner); err != nil {
		s.metrics.ObserveRound(name, metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("age update after selecting %s: %w", winner, err)
	}

	s.metrics.ObserveRound(name, metrics.OutcomeSealed, time.Since(start))
	s.logger.Info("block sealed",
		zap.String("validator", winner),
		zap.String("hash", h.String()),
		zap.String("strategy", name),
		zap.Int("transactions", len(sealed.Transactions)))
	return sealed, nil
}
