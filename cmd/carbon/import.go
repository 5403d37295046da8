package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import expense files into the ledger",
		Long: `Parse expense files, classify every expense into a GHG scope and store
the resulting emissions in the ledger.

Supported formats are chosen by extension: .csv, .xlsx, .ofx/.qfx, .pdf and .txt.
Each file becomes one upload batch; files are processed one after another.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("offline", false, "classify with keyword rules only")
	cmd.Flags().Bool("json", false, "print results as JSON")
	_ = viper.BindPFlag("import.offline", cmd.Flags().Lookup("offline"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	logger := slog.Default()

	parent, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(parent, "Files imported so far remain in the ledger.")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, err := buildClassifier(viper.GetBool("import.offline"), logger)
	if err != nil {
		return err
	}
	progress := cli.NewProgressClassifier(classifier, cmd.ErrOrStderr())

	p, err := buildPipeline(store, progress, nil, logger)
	if err != nil {
		return err
	}

	var failed int
	results := make([]*engine.IngestResult, 0, len(args))
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		name := filepath.Base(path)
		progress.Reset(-1, "Classifying "+name)
		result, err := p.engine.Ingest(ctx, p.engine, engine.Upload{
			UserID:   currentUser(),
			Filename: name,
			Data:     data,
		})

		var structural *parser.StructuralError
		switch {
		case errors.As(err, &structural):
			failed++
			for _, reason := range structural.Reasons {
				fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: invalid file structure: %s", name, reason)))
			}
			continue
		case err != nil && result == nil:
			return fmt.Errorf("failed to import %s: %w", name, err)
		case err != nil:
			failed++
		}
		results = append(results, result)

		if asJSON {
			continue
		}
		upload := result.Upload
		if upload != nil {
			if fresh, getErr := store.GetUpload(ctx, upload.ID); getErr == nil {
				upload = fresh
			}
		}
		fmt.Fprintln(out, cli.RenderIngest(name, result, upload))
	}

	if asJSON {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	}
	if interrupts.WasInterrupted() {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to import", failed, len(args))
	}
	if !asJSON {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d file(s)", len(results))))
	}
	return nil
}
