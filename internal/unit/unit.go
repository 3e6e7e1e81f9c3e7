// Package unit converts measured quantities into the canonical base unit of
// their measurement family: grams for mass, milliliters for volume and
// pieces for counted goods.
package unit

import (
	"math"
	"strings"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
)

type Unit string

const (
	Grams       Unit = "GRAMS"
	Kilograms   Unit = "KGS"
	Pounds      Unit = "LBS"
	Milliliters Unit = "ML"
	Liters      Unit = "LITERS"
	Pieces      Unit = "PCS"
	Boxes       Unit = "BOXES"
)

type Family string

const (
	Mass   Family = "MASS"
	Volume Family = "VOLUME"
	Count  Family = "COUNT"
)

type definition struct {
	family Family
	factor float64 // value * factor = base units
}

var definitions = map[Unit]definition{
	Grams:       {Mass, 1},
	Kilograms:   {Mass, 1000},
	Pounds:      {Mass, 453.59237},
	Milliliters: {Volume, 1},
	Liters:      {Volume, 1000},
	Pieces:      {Count, 1},
	Boxes:       {Count, 1},
}

var aliases = map[string]Unit{
	"g": Grams, "gram": Grams, "grams": Grams,
	"kg": Kilograms, "kgs": Kilograms, "kilogram": Kilograms, "kilograms": Kilograms,
	"lb": Pounds, "lbs": Pounds, "pound": Pounds, "pounds": Pounds,
	"ml": Milliliters, "milliliter": Milliliters, "milliliters": Milliliters, "millilitre": Milliliters,
	"l": Liters, "liter": Liters, "liters": Liters, "litre": Liters, "litres": Liters,
	"pc": Pieces, "pcs": Pieces, "piece": Pieces, "pieces": Pieces,
	"box": Boxes, "boxes": Boxes,
}

// All lists every supported unit.
func All() []Unit {
	return []Unit{Grams, Kilograms, Pounds, Milliliters, Liters, Pieces, Boxes}
}

// Parse resolves a user supplied unit name. Unknown names are rejected rather
// than treated as base units.
func Parse(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := aliases[key]; ok {
		return u, nil
	}
	if u := Unit(strings.ToUpper(key)); u.Valid() {
		return u, nil
	}
	return "", invalid(s)
}

func (u Unit) Valid() bool {
	_, ok := definitions[u]
	return ok
}

func (u Unit) Family() (Family, error) {
	d, ok := definitions[u]
	if !ok {
		return "", invalid(string(u))
	}
	return d.family, nil
}

// ToBaseUnits converts value expressed in u into base units.
func ToBaseUnits(value float64, u Unit) (float64, error) {
	d, ok := definitions[u]
	if !ok {
		return 0, invalid(string(u))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, apperror.New(apperror.CodeInvalidQuantity, "quantity must be a finite number")
	}
	return Round(value * d.factor), nil
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(base float64, u Unit) (float64, error) {
	d, ok := definitions[u]
	if !ok {
		return 0, invalid(string(u))
	}
	return base / d.factor, nil
}

// Compatible reports whether a and b belong to the same measurement family.
func Compatible(a, b Unit) bool {
	fa, err := a.Family()
	if err != nil {
		return false
	}
	fb, err := b.Family()
	if err != nil {
		return false
	}
	return fa == fb
}

// Round trims float noise from base-unit arithmetic to six decimal places.
func Round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func invalid(s string) error {
	return apperror.WithMetadata(apperror.CodeInvalidUnit, "unsupported unit "+`"`+s+`"`, map[string]string{"unit": s})
}
