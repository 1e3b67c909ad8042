package database

import (
	"errors"
	"fmt"
)

type FormulaKind string

const (
	ProductFormula  FormulaKind = "product"
	ReactantFormula FormulaKind = "reactant"
)

// ErrEmptyFormula is returned when a batch contains an empty formula. Nothing of the
// batch is written.
var ErrEmptyFormula = errors.New("empty formula")

// OriginalImageID is the key of the only row the original_image table may hold.
const OriginalImageID = 1

type Formula struct {
	ID      int64  `db:"id"`
	Formula string `db:"formula"`
}

// FormulaEntry is a single formula to be stored under the given kind.
type FormulaEntry struct {
	Kind    FormulaKind
	Formula string
}

type OriginalImage struct {
	ID        int64  `db:"id"`
	ImageData string `db:"image_data"` // data URL as sent by the browser
}

func (k FormulaKind) tableName() (string, error) {
	switch k {
	case ProductFormula:
		return "product_formulas", nil
	case ReactantFormula:
		return "reactant_formulas", nil
	default:
		return "", fmt.Errorf("unknown formula kind: %q", string(k))
	}
}

// validateEntries rejects a batch before any write when an entry has an unknown kind
// or an empty formula.
func validateEntries(entries []FormulaEntry) error {
	for i, entry := range entries {
		if _, err := entry.Kind.tableName(); err != nil {
			return err
		}
		if entry.Formula == "" {
			return fmt.Errorf("%w: %s entry %d", ErrEmptyFormula, entry.Kind, i)
		}
	}
	return nil
}
