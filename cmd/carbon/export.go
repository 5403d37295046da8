package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/config"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/sheets"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger",
	}
	cmd.AddCommand(exportSheetsCmd())
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Write the ledger for a period to Google Sheets",
		Long: `Replace the contents of the configured spreadsheet with the ledger rows and
a scope summary for the period.

Authentication uses sheets.service_account_path, or an OAuth2 client
(sheets.client_id, sheets.client_secret, sheets.refresh_token). The
GOOGLE_SHEETS_* environment variables are honored as well.`,
		RunE: runExportSheets,
	}
	addPeriodFlags(cmd)
	return cmd
}

func runExportSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}

	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return common.NewUserError("Google Sheets is not configured", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := service.TransactionFilter{UserID: currentUser()}
	if !period.Start.IsZero() {
		filter.StartDate = &period.Start
	}
	if !period.End.IsZero() {
		filter.EndDate = &period.End
	}
	txns, err := store.GetLedgerTransactions(ctx, filter)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No ledger rows in the period, nothing exported"))
		return nil
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}

	id, err := writer.Write(ctx, sheets.Export{
		Period:       period,
		Transactions: txns,
		Summary:      analytics.Summarize(txns),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Exported %d rows to https://docs.google.com/spreadsheets/d/%s", len(txns), id)))
	return nil
}
