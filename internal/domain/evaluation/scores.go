package evaluation

import "errors"

// Variant selects which of the four score columns a save targets.
type Variant string

const (
	VariantSelf    Variant = "self"
	VariantManager Variant = "manager"
	VariantHR      Variant = "hr"
	VariantFinal   Variant = "final"
)

var (
	ErrScoreOutOfRange  = errors.New("score outside the item's allowed range")
	ErrFinalScoreLocked = errors.New("final score is locked once recorded")
	ErrUnknownVariant   = errors.New("unknown score variant")
)

func ValidVariant(variant Variant) bool {
	switch variant {
	case VariantSelf, VariantManager, VariantHR, VariantFinal:
		return true
	}
	return false
}
