package climatiq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// SourcePrefix marks imported factors so the calculator grades them high.
const SourcePrefix = "Climatiq"

// FactorStore is the slice of storage the importer writes to.
type FactorStore interface {
	CreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) error
}

// Searcher finds factors for a request.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Factor, error)
}

// ImportResult counts the outcome of one import run.
type ImportResult struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// Importer copies search results into the catalogue. Rows that collide on
// (category, subcategory, year) keep the stored value.
type Importer struct {
	searcher Searcher
	store    FactorStore
	logger   *slog.Logger
}

// NewImporter creates an importer. A nil logger uses slog.Default.
func NewImporter(searcher Searcher, store FactorStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{searcher: searcher, store: store, logger: logger}
}

// DefaultQueries covers the categories the classifier emits.
func DefaultQueries(region string, year int) []SearchRequest {
	queries := []string{"diesel", "petrol", "electricity", "natural gas", "flight", "hotel", "taxi", "office supplies", "waste"}
	out := make([]SearchRequest, 0, len(queries))
	for _, q := range queries {
		out = append(out, SearchRequest{Query: q, Region: region, Year: year, Limit: 5})
	}
	return out
}

// Import runs every query and stores the results. A failed query aborts the run;
// rows stored before the failure stay stored.
func (i *Importer) Import(ctx context.Context, queries []SearchRequest) (ImportResult, error) {
	var result ImportResult
	for _, q := range queries {
		factors, err := i.searcher.Search(ctx, q)
		if err != nil {
			return result, err
		}
		result.Fetched += len(factors)

		for _, f := range factors {
			ef, ok := f.ToEmissionFactor()
			if !ok {
				result.Skipped++
				continue
			}
			err := i.store.CreateEmissionFactor(ctx, &ef)
			switch {
			case errors.Is(err, common.ErrDuplicateEntry):
				result.Existing++
			case err != nil:
				return result, fmt.Errorf("failed to store factor %s: %w", f.ID, err)
			default:
				result.Imported++
			}
		}
	}

	i.logger.Info("climatiq import finished",
		"fetched", result.Fetched,
		"imported", result.Imported,
		"existing", result.Existing,
		"skipped", result.Skipped)
	return result, nil
}

// ToEmissionFactor maps a search result onto a catalogue row. Results without
// a category, unit or positive factor are rejected. Scope follows the default
// table entry the category resolves to.
func (f Factor) ToEmissionFactor() (model.EmissionFactor, bool) {
	category := strings.TrimSpace(f.Category)
	if category == "" || f.Factor <= 0 || strings.TrimSpace(f.Unit) == "" {
		return model.EmissionFactor{}, false
	}

	subcategory := strings.TrimSpace(f.Subcategory)
	if subcategory == "" {
		subcategory = strings.TrimSpace(f.Name)
	}

	year := f.Year
	if year <= 0 {
		year = emissions.DefaultYear
	}

	source := SourcePrefix
	if f.Source != "" {
		source += " / " + f.Source
	}

	scope := model.Scope3
	if d, ok := emissions.DefaultFactors[emissions.DefaultFactorKey(category, subcategory)]; ok {
		scope = d.Scope
	}

	return model.EmissionFactor{
		Category:    category,
		Subcategory: subcategory,
		Scope:       scope,
		Factor:      f.Factor,
		Unit:        f.Unit,
		Source:      source,
		Year:        year,
		Description: strings.TrimSpace(f.Name + " " + f.Region),
	}, true
}
