package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/config"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and validate compliance reports",
	}
	cmd.AddCommand(reportGenerateCmd(), reportValidateCmd())
	return cmd
}

func reportGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a narrative and XBRL report for a period",
		Long: `Generate a paginated narrative report and an XBRL instance document for the
ledger in the given period. The report is stored in the ledger; with --out the
two documents are also written to that directory as <id>.txt and <id>.xbrl.`,
		RunE: runReportGenerate,
	}
	addPeriodFlags(cmd)
	cmd.Flags().String("company", "", "reporting entity name")
	cmd.Flags().String("identifier", "", "reporting entity identifier (e.g. LEI)")
	cmd.Flags().String("currency", "EUR", "reporting currency")
	cmd.Flags().String("title", "", "report title (default: GHG Emissions Report <year>)")
	cmd.Flags().String("out", "", "directory to write the documents to")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func runReportGenerate(cmd *cobra.Command, _ []string) error {
	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}
	company, _ := cmd.Flags().GetString("company")
	identifier, _ := cmd.Flags().GetString("identifier")
	currency, _ := cmd.Flags().GetString("currency")
	title, _ := cmd.Flags().GetString("title")
	outDir, _ := cmd.Flags().GetString("out")

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rep, err := report.NewGenerator(store, uuid.NewString).Generate(cmd.Context(), report.Request{
		UserID: currentUser(),
		Title:  title,
		Period: period,
		Entity: report.Entity{
			Name:       strings.TrimSpace(company),
			Identifier: identifier,
			Currency:   currency,
		},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderReport(rep))

	if outDir != "" {
		dir := config.ExpandPath(outDir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		for _, doc := range []struct{ ext, body string }{{".txt", rep.Narrative}, {".xbrl", rep.XBRL}} {
			path := filepath.Join(dir, rep.ID+doc.ext)
			if err := os.WriteFile(path, []byte(doc.body), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintln(out, cli.FormatSuccess("Wrote "+path))
		}
	}

	if rep.Status == model.ReportFailed {
		return fmt.Errorf("report %s failed validation: %s", rep.ID, rep.ErrorMessage)
	}
	return nil
}

func reportValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.xbrl>",
		Short: "Check an XBRL instance for the required GHG facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			v := report.ValidateXBRL(data)
			out := cmd.OutOrStdout()
			for _, w := range v.Warnings {
				fmt.Fprintln(out, cli.FormatWarning(w))
			}
			for _, e := range v.Errors {
				fmt.Fprintln(out, cli.FormatError(e))
			}
			if !v.Valid {
				return fmt.Errorf("%s is not a valid GHG XBRL instance (%d error(s))", args[0], len(v.Errors))
			}
			fmt.Fprintln(out, cli.FormatSuccess(args[0]+" is valid"))
			return nil
		},
	}
}
