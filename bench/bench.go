package bench

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/config"
	"github.com/thrylos-labs/posseal/consensus/sealer"
	"github.com/thrylos-labs/posseal/node"
	"github.com/thrylos-labs/posseal/types"
	"go.uber.org/zap"
)

const (
	TransactionCreationTime = "TransactionCreationTime"
	ValidationCheckTime     = "ValidationCheckTime"
	PrintBalancesTime       = "PrintBalancesTime"
	PrintBlockchainTime     = "PrintBlockchainTime"
)

const separator = "--------------------------------------------------"

// BlockGenerationTime names the timer of the n-th block, genesis being 1.
func BlockGenerationTime(n int) string {
	return fmt.Sprintf("BlockGenerationTime_Block%d", n)
}

type Timer struct {
	Name    string
	Elapsed time.Duration
}

type Balance struct {
	Name    string
	Address string
	Balance amount.Amount
}

// Result is one strategy's run on its own fresh chain.
type Result struct {
	Algorithm string
	Strategy  string
	Timers    []Timer
	Balances  []Balance
	Height    int
	Skipped   int
}

// Harness seals cfg.Rounds blocks per configured strategy and records how
// long each stage takes.
type Harness struct {
	cfg    *config.Config
	out    io.Writer
	logger *zap.Logger
}

// NewHarness validates cfg. Progress, balances and the chain dump go to
// out.
func NewHarness(cfg *config.Config, out io.Writer, logger *zap.Logger) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{cfg: cfg, out: out, logger: logger}, nil
}

// Run executes every strategy in cfg.Strategies in order.
func (h *Harness) Run() ([]Result, error) {
	results := make([]Result, 0, len(h.cfg.Strategies))
	for _, name := range h.cfg.Strategies {
		res, err := h.RunStrategy(name)
		if err != nil {
			return results, fmt.Errorf("%s: %w", name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunStrategy starts a fresh in-memory chain for strategy and runs the
// full benchmark against it.
func (h *Harness) RunStrategy(strategy string) (Result, error) {
	cfg := *h.cfg
	cfg.Strategy = strategy
	cfg.DataDir = ""
	cfg.Nodes = append([]config.Participant(nil), h.cfg.Nodes...)
	cfg.Accounts = append([]config.Participant(nil), h.cfg.Accounts...)

	n, err := node.NewNode(&cfg, node.WithLogger(h.logger.Named(strategy)))
	if err != nil {
		return Result{}, err
	}
	defer n.Close()

	res := Result{
		Algorithm: AlgorithmLabel(strategy),
		Strategy:  strategy,
	}
	fmt.Fprintln(h.out, separator)
	fmt.Fprintf(h.out, "New blockchain started with %s\n", res.Algorithm)

	start := time.Now()
	if len(cfg.Accounts) >= 2 {
		a, b := cfg.Accounts[0].Address, cfg.Accounts[1].Address
		if _, err := n.SubmitTransaction(a, b, 100); err != nil {
			return res, err
		}
		if _, err := n.SubmitTransaction(b, a, 50); err != nil {
			return res, err
		}
	}
	res.record(TransactionCreationTime, time.Since(start))

	for i := 0; i < cfg.Rounds; i++ {
		start := time.Now()
		b, err := n.SealNext()
		switch {
		case errors.Is(err, sealer.ErrNoEligibleValidator):
			res.Skipped++
			fmt.Fprintln(h.out, "No validator found. Skipping block generation.")
		case err != nil:
			return res, err
		default:
			fmt.Fprintf(h.out, "Block %d sealed by %s\n", i+2, b.Validator)
		}
		res.record(BlockGenerationTime(i+2), time.Since(start))
	}

	start = time.Now()
	if err := n.Chain().ValidationCheck(); err != nil {
		return res, fmt.Errorf("validation check failed: %w", err)
	}
	res.record(ValidationCheckTime, time.Since(start))

	start = time.Now()
	fmt.Fprintln(h.out, separator)
	for _, p := range append(append([]config.Participant(nil), cfg.Nodes...), cfg.Accounts...) {
		bal := n.Chain().GetBalanceOfAddress(p.Address)
		res.Balances = append(res.Balances, Balance{Name: p.Name, Address: p.Address, Balance: bal})
		fmt.Fprintf(h.out, "Balance of %s (%s):\t%s\n", p.Name, p.Address, bal)
	}
	res.record(PrintBalancesTime, time.Since(start))

	start = time.Now()
	blocks := n.Chain().Blocks()
	dump, err := Report(blocks)
	if err != nil {
		return res, err
	}
	fmt.Fprintln(h.out, separator)
	fmt.Fprintln(h.out, "Blockchain")
	h.out.Write(dump)
	fmt.Fprintln(h.out)
	res.record(PrintBlockchainTime, time.Since(start))

	res.Height = len(blocks)
	h.logger.Info("benchmark finished",
		zap.String("strategy", strategy),
		zap.Int("height", res.Height),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (r *Result) record(name string, elapsed time.Duration) {
	r.Timers = append(r.Timers, Timer{Name: name, Elapsed: elapsed})
}

// AlgorithmLabel is the display name written to the CSV.
func AlgorithmLabel(strategy string) string {
	s := strings.ToLower(strategy)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Report renders the chain as indented JSON.
func Report(blocks []*types.Block) ([]byte, error) {
	return json.MarshalIndent(blocks, "", "    ")
}

// WriteCSV writes every timer of every result as Algorithm,TimerName,Time(ms).
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Algorithm", "TimerName", "Time(ms)"}); err != nil {
		return err
	}
	for _, res := range results {
		for _, t := range res.Timers {
			ms := float64(t.Elapsed) / float64(time.Millisecond)
			if err := cw.Write([]string{res.Algorithm, t.Name, fmt.Sprintf("%.3f", ms)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
