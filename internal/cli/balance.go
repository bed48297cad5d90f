package cli

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossroads-network/crossroads/internal/daemon"
	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/balance"
	"github.com/crossroads-network/crossroads/internal/infra/electorate"
)

var (
	balanceSeed   int64
	balanceAsJSON bool
)

var balanceCmd = &cobra.Command{
	Use:   "balance SCENARIO_FILE",
	Short: "Balance a candidate scenario against the synthetic electorate",
	Long: `Run the authoring-time balancing loop on a candidate scenario JSON
file. The scenario is simulated against a synthetic electorate, scored,
and adjusted until balanced or the attempt budget runs out. The adjusted
scenario and verdict are printed; nothing is published.`,
	Args: cobra.ExactArgs(1),
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().Int64Var(&balanceSeed, "seed", 0, "Electorate RNG seed (0 = random)")
	balanceCmd.Flags().BoolVar(&balanceAsJSON, "json", false, "Print the full report as JSON")
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read scenario file: %w", err)
	}
	var scenario domain.Scenario
	if err := json.Unmarshal(raw, &scenario); err != nil {
		return fmt.Errorf("parse scenario file: %w", err)
	}

	report, err := newBalanceLoop(cfg, balanceSeed).Run(&scenario)
	if err != nil {
		return fmt.Errorf("balance scenario: %w", err)
	}

	if balanceAsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(os.Stdout, "Scenario: %s (%s)\n", scenario.Title, scenario.ID)
	fmt.Fprintf(os.Stdout, "Attempts: %d of %d\n", report.Attempts, balance.MaxAttempts)
	fmt.Fprintf(os.Stdout, "Score:    %.2f (dominance %d%%, monotonous %v)\n",
		report.Result.BalanceScore, report.Result.DominancePct, report.Result.IsMonotonous)
	for id, votes := range report.Result.OptionVotes {
		fmt.Fprintf(os.Stdout, "  option %-12s %d votes\n", id, votes)
	}
	for _, adj := range report.Adjustments {
		fmt.Fprintf(os.Stdout, "Adjusted: %s\n", adj)
	}
	if report.Accepted {
		fmt.Fprintln(os.Stdout, "Verdict:  BALANCED")
	} else {
		fmt.Fprintln(os.Stdout, "Verdict:  NOT BALANCED (review before publishing)")
	}
	return nil
}

// newBalanceLoop builds a balancing loop from config, optionally seeded for
// reproducible runs.
func newBalanceLoop(cfg daemon.Config, seed int64) *balance.Loop {
	model := electorate.NewDefault()
	if seed != 0 {
		model = electorate.New(electorate.DefaultArchetypes, rand.New(rand.NewSource(seed)))
	}
	model.SetPopulation(cfg.Balance.Population)

	loop := balance.NewLoop(model)
	loop.SetAcceptScore(cfg.Balance.MinScore)
	loop.SetMaxAttempts(cfg.Balance.MaxAttempts)
	return loop
}
