package domain

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidMacros is returned by Macros.Validate for negative, non-finite,
// or more-than-two-decimal values.
var ErrInvalidMacros = errors.New("macros must be non-negative with at most two decimal places")

// Macros is the per-serving nutrition block shared by recipes and proposals.
// Every value carries at most two decimal places.
type Macros struct {
	Kcal    float64 `json:"kcal"    gorm:"not null;default:0"`
	Protein float64 `json:"protein" gorm:"not null;default:0"`
	Carbs   float64 `json:"carbs"   gorm:"not null;default:0"`
	Fat     float64 `json:"fat"     gorm:"not null;default:0"`
}

// MacroFactors are multiplicative adjustments applied by Macros.Scale.
// A zero factor means "unchanged".
type MacroFactors struct {
	Kcal, Protein, Carbs, Fat float64
}

// RoundMacro rounds v to two decimal places, halves rounding up.
// Rounding is done in decimal so 2.675 becomes 2.68 rather than 2.67.
func RoundMacro(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Scale multiplies each value by its factor and rounds the result.
func (m Macros) Scale(f MacroFactors) Macros {
	return Macros{
		Kcal:    scaleOne(m.Kcal, f.Kcal),
		Protein: scaleOne(m.Protein, f.Protein),
		Carbs:   scaleOne(m.Carbs, f.Carbs),
		Fat:     scaleOne(m.Fat, f.Fat),
	}
}

func scaleOne(v, factor float64) float64 {
	if factor == 0 {
		return RoundMacro(v)
	}
	out, _ := decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(factor)).Round(2).Float64()
	return out
}

// Rounded returns a copy with every value rounded to two decimals.
func (m Macros) Rounded() Macros {
	return m.Scale(MacroFactors{})
}

// Validate rejects values whose cents component does not round-trip.
func (m Macros) Validate() error {
	for _, v := range []float64{m.Kcal, m.Protein, m.Carbs, m.Fat} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidMacros
		}
		if RoundMacro(v) != v {
			return ErrInvalidMacros
		}
	}
	return nil
}
