package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/heritage-watch/heritage-cli/internal/history"
	"github.com/heritage-watch/heritage-cli/internal/model"
)

var (
	historyStatus    string
	historySinceDur  time.Duration
	historyLimit     int
	historyOffset    int
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the resolution audit trail",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent resolutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "history: open store")
		}
		if store == nil {
			return eris.New("history: no store configured (history.driver is none)")
		}
		defer store.Close()

		filter := history.Filter{
			Status: model.Status(historyStatus),
			Limit:  historyLimit,
			Offset: historyOffset,
		}
		if historySinceDur > 0 {
			filter.Since = time.Now().UTC().Add(-historySinceDur)
		}

		records, err := store.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history: list")
		}
		if len(records) == 0 {
			fmt.Println("No resolutions recorded.")
			return nil
		}

		for _, rec := range records {
			fmt.Printf("%s  %-5s  %.5f,%.5f  %s\n",
				rec.ResolvedAt.Format(time.RFC3339), rec.Status,
				rec.Latitude, rec.Longitude, describeRecord(rec))
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if historyOlderThan <= 0 {
			return eris.New("history: --older-than must be positive")
		}

		store, err := openHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "history: open store")
		}
		if store == nil {
			return eris.New("history: no store configured (history.driver is none)")
		}
		defer store.Close()

		cutoff := time.Now().UTC().Add(-historyOlderThan)
		deleted, err := store.PruneBefore(ctx, cutoff)
		if err != nil {
			return eris.Wrap(err, "history: prune")
		}

		fmt.Printf("Deleted %d records older than %s\n", deleted, cutoff.Format(time.RFC3339))
		return nil
	},
}

// describeRecord summarizes the matched entity for one audit line.
func describeRecord(rec history.Record) string {
	switch rec.Status {
	case model.StatusRed:
		dist := ""
		if rec.DistanceMeters != nil {
			dist = fmt.Sprintf(" (%.1fm)", *rec.DistanceMeters)
		}
		return fmt.Sprintf("%s [%s]%s", rec.BuildingName, rec.ListEntry, dist)
	case model.StatusAmber:
		suffix := ""
		if rec.HasArticle4 {
			suffix = " +Article4"
		}
		return rec.AreaName + suffix
	default:
		return "no constraints"
	}
}

func init() {
	historyListCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (RED, AMBER, GREEN)")
	historyListCmd.Flags().DurationVar(&historySinceDur, "since", 0, "only records newer than this age (e.g. 24h)")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum records to print")
	historyListCmd.Flags().IntVar(&historyOffset, "offset", 0, "records to skip")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 0, "delete records older than this age (e.g. 2160h)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
