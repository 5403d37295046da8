package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/climatiq"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func factorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "factors",
		Short: "Manage the emission factor catalogue",
	}
	cmd.AddCommand(factorsListCmd(), factorsSeedCmd(), factorsImportCmd())
	return cmd
}

func factorsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored emission factors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			factors, err := store.GetEmissionFactors(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), factors)
			}
			if len(factors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No factors stored yet. Run `carbon factors seed`."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderFactors(factors))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func factorsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the built-in DEFRA 2024 table into an empty catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := emissions.NewCalculator(store).SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Catalogue already populated, nothing seeded"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Seeded %d emission factors", n)))
			return nil
		},
	}
}

func factorsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [query]...",
		Short: "Import emission factors from Climatiq",
		Long: `Search the Climatiq factor database and add the results to the catalogue.

Without queries, a default set covering fuel, energy, travel, hotels, office
supplies and waste is used. Factors that already exist for the same category,
subcategory and year are left untouched. Requires climatiq.api_key.`,
		RunE: runFactorsImport,
	}
	cmd.Flags().String("region", "EU", "factor region")
	cmd.Flags().Int("year", emissions.DefaultYear, "factor year")
	cmd.Flags().Int("limit", 5, "results per query")
	return cmd
}

func runFactorsImport(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")

	client, err := climatiq.NewClient(climatiq.Config{
		APIKey:  viper.GetString("climatiq.api_key"),
		BaseURL: viper.GetString("climatiq.base_url"),
	})
	if err != nil {
		return common.NewUserError("Climatiq is not configured (set climatiq.api_key or CARBON_CLIMATIQ_API_KEY)", err)
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	queries := climatiq.DefaultQueries(region, year)
	if len(args) > 0 {
		queries = queries[:0]
		for _, q := range args {
			queries = append(queries, climatiq.SearchRequest{Query: q, Region: region, Year: year})
		}
	}
	for i := range queries {
		queries[i].Limit = limit
	}

	result, err := climatiq.NewImporter(client, store, slog.Default()).Import(cmd.Context(), queries)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Fetched %d, imported %d, already present %d, skipped %d",
		result.Fetched, result.Imported, result.Existing, result.Skipped)))
	return nil
}
