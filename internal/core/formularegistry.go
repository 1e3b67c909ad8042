package core

import (
	"context"
	"log/slog"

	"github.com/jo-hoe/formulastore/internal/backend/database"
)

// FormulaLists holds both formula sets in ascending order.
type FormulaLists struct {
	Products  []string
	Reactants []string
}

// SaveOutcome reports per entry whether a save created a row or found it already stored.
// Entries skipped for being empty appear in neither list.
type SaveOutcome struct {
	InsertedProducts  []string
	ExistingProducts  []string
	InsertedReactants []string
	ExistingReactants []string
}

// Inserted returns the number of rows created by the save.
func (o *SaveOutcome) Inserted() int {
	return len(o.InsertedProducts) + len(o.InsertedReactants)
}

// FormulaRegistry keeps the product and reactant formulas unique and ordered.
type FormulaRegistry struct {
	databaseService database.DatabaseService
}

func NewFormulaRegistry(databaseService database.DatabaseService) *FormulaRegistry {
	return &FormulaRegistry{databaseService: databaseService}
}

func (r *FormulaRegistry) ListFormulas(ctx context.Context) (*FormulaLists, error) {
	products, err := r.databaseService.GetFormulas(ctx, database.ProductFormula)
	if err != nil {
		return nil, storageError("list product formulas", err)
	}
	reactants, err := r.databaseService.GetFormulas(ctx, database.ReactantFormula)
	if err != nil {
		return nil, storageError("list reactant formulas", err)
	}

	return &FormulaLists{
		Products:  project(products),
		Reactants: project(reactants),
	}, nil
}

func project(rows []*database.Formula) []string {
	formulas := make([]string, 0, len(rows))
	for _, row := range rows {
		formulas = append(formulas, row.Formula)
	}
	return formulas
}

// SaveFormulas stores product (when non-empty) and every non-empty reactant as one atomic batch.
// Formulas already stored are left alone, so repeating a save is harmless.
func (r *FormulaRegistry) SaveFormulas(ctx context.Context, product string, reactants []string) (*SaveOutcome, error) {
	entries := make([]database.FormulaEntry, 0, len(reactants)+1)
	if product != "" {
		entries = append(entries, database.FormulaEntry{Kind: database.ProductFormula, Formula: product})
	}
	for _, reactant := range reactants {
		if reactant == "" {
			continue
		}
		entries = append(entries, database.FormulaEntry{Kind: database.ReactantFormula, Formula: reactant})
	}

	outcome := &SaveOutcome{}
	if len(entries) == 0 {
		return outcome, nil
	}

	inserted, err := r.databaseService.InsertFormulas(ctx, entries)
	if err != nil {
		return nil, storageError("save formulas", err)
	}

	for i, entry := range entries {
		switch {
		case entry.Kind == database.ProductFormula && inserted[i]:
			outcome.InsertedProducts = append(outcome.InsertedProducts, entry.Formula)
		case entry.Kind == database.ProductFormula:
			outcome.ExistingProducts = append(outcome.ExistingProducts, entry.Formula)
		case inserted[i]:
			outcome.InsertedReactants = append(outcome.InsertedReactants, entry.Formula)
		default:
			outcome.ExistingReactants = append(outcome.ExistingReactants, entry.Formula)
		}
	}

	slog.Debug("formulas saved",
		"inserted_products", outcome.InsertedProducts,
		"existing_products", outcome.ExistingProducts,
		"inserted_reactants", outcome.InsertedReactants,
		"existing_reactants", outcome.ExistingReactants)
	return outcome, nil
}
