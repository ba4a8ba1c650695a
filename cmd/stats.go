package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View application statistics",
	Long:  "Aggregate stored application records by status and ATS type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")

		stats, err := a.Store.GetStats(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}

		if stats.Total == 0 {
			fmt.Println("No applications yet. Apply to a job with 'autoapply apply <url>'")
			return nil
		}

		fmt.Println(titleStyle.Render("Application Statistics"))

		fmt.Printf("\n%s\n", labelStyle.Render("Overview"))
		fmt.Printf("  Total Applications: %d\n", stats.Total)
		fmt.Printf("  Success Rate: %.1f%%\n", stats.SuccessRate()*100)
		fmt.Printf("  Active Aliases: %d\n", stats.ActiveAliases)
		fmt.Printf("  Replies Received: %d\n", stats.EmailsReceived)

		printBreakdown("Status Breakdown", stats.ByStatus, stats.Total, true)
		printBreakdown("ATS Breakdown", stats.ByATS, stats.Total, false)
		return nil
	},
}

func printBreakdown(title string, counts map[string]int, total int, styled bool) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Printf("\n%s\n", labelStyle.Render(title))
	for _, k := range keys {
		name := k
		if styled {
			name = statusStyle(k).Render(k)
		}
		percentage := float64(counts[k]) / float64(total) * 100
		fmt.Printf("  %s: %d (%.1f%%)\n", name, counts[k], percentage)
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("user", "", "Only count records for this user id")
}
