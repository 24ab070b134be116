package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AkinduIB/GreenGuard/internal/recommendation"
	"github.com/AkinduIB/GreenGuard/pkg/models"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <label>",
	Short: "Print the advice for a class label",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecommend,
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the class labels with advice",
	Args:  cobra.NoArgs,
	RunE:  runLabels,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	table, err := recommendation.Load(recommendationsPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	label := models.Label(args[0])
	rec := table.Lookup(label)

	fmt.Fprintf(out, "Disease: %s\n", rec.DiseaseName)
	fmt.Fprintf(out, "\nTreatment Recommendation:\n%s\n", rec.Recommendations)
	fmt.Fprintf(out, "\nPreventive Measures:\n%s\n", rec.PreventiveMeasures)

	if !table.Has(label) {
		if s, ok := table.Suggest(label); ok {
			fmt.Fprintf(out, "\nUnknown label %q. Did you mean %q?\n", label, s)
		}
	}
	return nil
}

func runLabels(cmd *cobra.Command, args []string) error {
	table, err := recommendation.Load(recommendationsPath)
	if err != nil {
		return err
	}
	for _, l := range table.Labels() {
		fmt.Fprintln(cmd.OutOrStdout(), l)
	}
	return nil
}
