package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crossroads-network/crossroads/internal/daemon"
	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/ballot"
	"github.com/crossroads-network/crossroads/internal/infra/observability"
	"github.com/crossroads-network/crossroads/internal/infra/sqlite"
)

var publishSkipBalance bool

var publishCmd = &cobra.Command{
	Use:   "publish SCENARIO_FILE",
	Short: "Publish a scenario and open it for voting",
	Long: `Balance a candidate scenario and publish it to the store as the
current active scenario. Balancing can be skipped for scenarios that were
already reviewed with the balance command.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().BoolVar(&publishSkipBalance, "skip-balance", false, "Publish without running the balancing loop")
}

func runPublish(cmd *cobra.Command, args []string) error {
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
	if scenario.ID == "" {
		scenario.ID = uuid.NewString()
	}

	if !publishSkipBalance {
		report, err := newBalanceLoop(cfg, 0).Run(&scenario)
		if err != nil {
			return fmt.Errorf("balance scenario: %w", err)
		}
		if !report.Accepted {
			return fmt.Errorf("scenario %s is not balanced (score %.2f, dominance %d%%); adjust it or pass --skip-balance",
				scenario.ID, report.Result.BalanceScore, report.Result.DominancePct)
		}
	}

	now := time.Now()
	scenario.CreatedAt = now
	scenario.ExpiresAt = now.Add(cfg.Voting.ScenarioTTLDuration())

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer db.Close()

	if err := ballot.NewScenarios(db).Publish(cmd.Context(), &scenario); err != nil {
		return fmt.Errorf("publish scenario: %w", err)
	}
	observability.ActiveScenario.Set(1)
	fmt.Fprintf(os.Stdout, "Published scenario %s, voting closes %s\n",
		scenario.ID, scenario.ExpiresAt.Format(time.RFC3339))
	return nil
}
