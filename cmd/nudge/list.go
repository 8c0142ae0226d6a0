package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/adapter/output"
	"github.com/jmylchreest/nudge/internal/core"
	"github.com/jmylchreest/nudge/internal/model"
)

var listOpts struct {
	format   string
	template string
	maxLen   int
	types    string
	priority string
	since    string
	limit    int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's pending notifications",
	Long: `List the notifications the feed would deliver for a user: undismissed,
unread and oldest first.

Examples:
  nudge list --user u1
  nudge list --user u1 --format json
  nudge list --user u1 --type reward,achievement --since 7d
  nudge list --user u1 --template '{{.ID}} {{.Title}} {{.RewardText}}'`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", string(output.FormatPlain),
		"Output format (plain, json, yaml)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Go template for plain output")
	listCmd.Flags().IntVar(&listOpts.maxLen, "max-len", 80,
		"Maximum message length for plain output (0 = unlimited)")
	listCmd.Flags().StringVar(&listOpts.types, "type", "",
		"Comma separated notification types to include")
	listCmd.Flags().StringVar(&listOpts.priority, "priority", "",
		"Only include this priority (low, medium, high)")
	listCmd.Flags().StringVar(&listOpts.since, "since", "0",
		"Only include notifications newer than this (e.g. 48h, 7d, 1w, 0 for all)")
	listCmd.Flags().IntVarP(&listOpts.limit, "limit", "n", 0,
		"Maximum notifications to list (0 = unlimited)")
}

// listFilter builds filter options from the list flags.
func listFilter() (core.FilterOptions, error) {
	since, err := core.ParseDuration(listOpts.since)
	if err != nil {
		return core.FilterOptions{}, err
	}
	types, err := core.ParseTypes(listOpts.types)
	if err != nil {
		return core.FilterOptions{}, err
	}
	return core.FilterOptions{
		Since:    since,
		Types:    types,
		Priority: model.Priority(listOpts.priority),
		Limit:    listOpts.limit,
	}, nil
}

func runList(cmd *cobra.Command, args []string) error {
	userID, err := requireUser()
	if err != nil {
		return err
	}

	filter, err := listFilter()
	if err != nil {
		return err
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	opts.MessageMaxLen = listOpts.maxLen
	formatter, err := output.NewFormatter(output.FormatType(listOpts.format), opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	notifications, err := backend.List(ctx, userID)
	if err != nil {
		return err
	}
	return formatter.Format(cmd.OutOrStdout(), core.Filter(notifications, filter))
}
