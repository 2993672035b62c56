package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/HerbHall/feedwatch/internal/monitor"
	"github.com/HerbHall/feedwatch/internal/source"
	"github.com/HerbHall/feedwatch/pkg/models"
)

func fetchCmd(configPath *string) *cobra.Command {
	var stateID int
	var all bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the listings once and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !cmd.Flags().Changed("state") {
				stateID, _ = cfg.StateFeeds()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Source.Timeout+5*time.Second)
			defer cancel()

			client := source.NewClient(cfg.Source, logger.Named("source"))
			feeds, err := client.Fetch(ctx, stateID)
			if err != nil {
				return fmt.Errorf("fetch feeds: %w", err)
			}

			filter := monitor.NewFilter(cfg)
			if all {
				filter = monitor.Filter{}
			}
			return printFeeds(cmd.OutOrStdout(), feeds, filter)
		},
	}
	cmd.Flags().IntVar(&stateID, "state", 0, "state listing id to merge (overrides misc.state_feeds_id)")
	cmd.Flags().BoolVar(&all, "all", false, "include feeds excluded by the filters")
	return cmd
}

// printFeeds writes one row per feed. Feeds excluded by the filter are
// listed with the reason so filter settings can be checked.
func printFeeds(w io.Writer, feeds []models.FeedSnapshot, filter monitor.Filter) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Listeners", "Name", "Status", "Alert"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, f := range feeds {
		status := "tracked"
		if reason := filter.Reason(f); reason != "" {
			status = reason
		}
		table.Append([]string{
			strconv.FormatUint(uint64(f.ID), 10),
			strconv.FormatUint(uint64(f.Listeners), 10),
			f.Name,
			status,
			f.Alert,
		})
	}
	table.Render()
	return nil
}
