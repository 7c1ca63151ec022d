package bench

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrylos-labs/posseal/amount"
	"github.com/thrylos-labs/posseal/config"
	"github.com/thrylos-labs/posseal/types"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Rounds = 5
	cfg.Seed = 42
	return cfg
}

func TestHarnessRun(t *testing.T) {
	var out bytes.Buffer
	h, err := NewHarness(smallConfig(), &out, nil)
	require.NoError(t, err)

	results, err := h.Run()
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Random", results[0].Algorithm)
	assert.Equal(t, "Hybrid", results[1].Algorithm)
	assert.Equal(t, "Age", results[2].Algorithm)

	for _, res := range results {
		t.Run(res.Algorithm, func(t *testing.T) {
			assert.Equal(t, 6, res.Height)
			assert.Zero(t, res.Skipped)

			names := make([]string, len(res.Timers))
			for i, tm := range res.Timers {
				names[i] = tm.Name
			}
			assert.Equal(t, []string{
				TransactionCreationTime,
				"BlockGenerationTime_Block2",
				"BlockGenerationTime_Block3",
				"BlockGenerationTime_Block4",
				"BlockGenerationTime_Block5",
				"BlockGenerationTime_Block6",
				ValidationCheckTime,
				PrintBalancesTime,
				PrintBlockchainTime,
			}, names)

			balances := map[string]amount.Amount{}
			for _, b := range res.Balances {
				balances[b.Name] = b.Balance
			}
			assert.Equal(t, amount.Amount(950), balances["account-1"])
			assert.Equal(t, amount.Amount(1050), balances["account-2"])
			assert.Equal(t, amount.Amount(800), balances["node-1"])
		})
	}

	assert.Contains(t, out.String(), "Blockchain")
	assert.Contains(t, out.String(), "New blockchain started with Hybrid")
}

func TestHarnessSkipsRoundsWithoutValidators(t *testing.T) {
	cfg := smallConfig()
	cfg.Strategies = []string{"age"}
	for i := range cfg.Nodes {
		cfg.Nodes[i].Stake = 0
	}
	var out bytes.Buffer
	h, err := NewHarness(cfg, &out, nil)
	require.NoError(t, err)

	results, err := h.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Height)
	assert.Equal(t, 5, results[0].Skipped)
	assert.Len(t, results[0].Timers, 9)
	assert.Contains(t, out.String(), "Skipping block generation")
}

func TestWriteCSV(t *testing.T) {
	results := []Result{
		{Algorithm: "Random", Timers: []Timer{{Name: TransactionCreationTime, Elapsed: 1500 * time.Microsecond}}},
		{Algorithm: "Age", Timers: []Timer{
			{Name: BlockGenerationTime(2), Elapsed: 250 * time.Microsecond},
			{Name: ValidationCheckTime, Elapsed: 2 * time.Millisecond},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Algorithm", "TimerName", "Time(ms)"},
		{"Random", "TransactionCreationTime", "1.500"},
		{"Age", "BlockGenerationTime_Block2", "0.250"},
		{"Age", "ValidationCheckTime", "2.000"},
	}, records)
}

func TestReport(t *testing.T) {
	blocks := []*types.Block{{Timestamp: 1}, {Timestamp: 2, Validator: "N1"}}
	data, err := Report(blocks)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    {")

	var decoded []types.Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "N1", decoded[1].Validator)
}

func TestAlgorithmLabel(t *testing.T) {
	assert.Equal(t, "Random", AlgorithmLabel("random"))
	assert.Equal(t, "Hybrid", AlgorithmLabel("HYBRID"))
	assert.Equal(t, "", AlgorithmLabel(""))
}
