package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/review"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Verify or correct classified ledger rows interactively",
		Long: `Step through ledger rows that nobody has confirmed yet. Each row can be
verified as classified, or corrected to another category and scope, which
recalculates its emissions. Corrected rows count as verified.`,
		RunE: runReview,
	}
	cmd.Flags().String("upload", "", "only review rows from this upload")
	cmd.Flags().Int("limit", 200, "maximum rows to load")
	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	uploadID, _ := cmd.Flags().GetString("upload")
	limit, _ := cmd.Flags().GetInt("limit")
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rows, err := store.GetLedgerTransactions(ctx, service.TransactionFilter{
		UserID:     currentUser(),
		UploadID:   uploadID,
		Unverified: true,
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Every ledger row is verified"))
		return nil
	}

	// Corrections resolve factors locally; no remote classifier is needed.
	classifier, err := buildClassifier(true, logger)
	if err != nil {
		return err
	}
	p, err := buildPipeline(store, classifier, nil, logger)
	if err != nil {
		return err
	}

	_, err = review.Run(ctx, review.Config{
		Reviewer:  p.engine,
		Rows:      rows,
		Input:     cmd.InOrStdin(),
		Output:    cmd.OutOrStdout(),
		AltScreen: true,
	})
	return err
}
