package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossroads-network/crossroads/internal/daemon"
	"github.com/crossroads-network/crossroads/internal/domain"
)

var closeEligible int

var closeCmd = &cobra.Command{
	Use:   "close SCENARIO_ID",
	Short: "Close a scenario on a running server and settle the outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
	closeCmd.Flags().IntVar(&closeEligible, "eligible", 0, "Eligible user count for participation rate (0 = config default)")
}

func runClose(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	eligible := closeEligible
	if eligible <= 0 {
		eligible = cfg.Voting.ExpectedEligibleUsers
	}

	body, err := json.Marshal(map[string]int{"eligible_users": eligible})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://%s:%d/api/scenario/%s/close", cfg.API.Host, cfg.API.Port, args[0])
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("close request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("close failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var result domain.CloseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode close result: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Scenario %s closed\n", result.ScenarioID)
	fmt.Fprintf(os.Stdout, "Winner:        %s (%s)\n", result.Winner.ID, result.Winner.Text)
	fmt.Fprintf(os.Stdout, "Votes:         %d total\n", result.Tally.TotalVotes)
	fmt.Fprintf(os.Stdout, "Participation: %.0f%%\n", result.ParticipationRate*100)
	fmt.Fprintf(os.Stdout, "Summary:       %s\n", result.Summary)
	return nil
}
