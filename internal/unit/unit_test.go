package unit

import (
	"errors"
	"math"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		value float64
		unit  Unit
		want  float64
	}{
		{1, Kilograms, 1000},
		{200, Grams, 200},
		{2, Pounds, 907.18474},
		{1.5, Liters, 1500},
		{250, Milliliters, 250},
		{12, Pieces, 12},
		{3, Boxes, 3},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.value, tt.unit)
		if err != nil {
			t.Fatalf("ToBaseUnits(%v, %s): %v", tt.value, tt.unit, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("ToBaseUnits(%v, %s) = %v, want %v", tt.value, tt.unit, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	values := []float64{0, 0.25, 1, 3.75, 1234.5}
	for _, u := range All() {
		for _, v := range values {
			base, err := ToBaseUnits(v, u)
			if err != nil {
				t.Fatalf("to base %s: %v", u, err)
			}
			back, err := FromBaseUnits(base, u)
			if err != nil {
				t.Fatalf("from base %s: %v", u, err)
			}
			if math.Abs(back-v) > 1e-6 {
				t.Fatalf("round trip %v %s = %v", v, u, back)
			}
		}
	}
}

func TestUnknownUnitIsRejected(t *testing.T) {
	if _, err := ToBaseUnits(1, Unit("STONES")); !errors.Is(err, apperror.ErrInvalidUnit) {
		t.Fatalf("expected invalid unit, got %v", err)
	}
	if _, err := FromBaseUnits(1, Unit("")); !errors.Is(err, apperror.ErrInvalidUnit) {
		t.Fatalf("expected invalid unit, got %v", err)
	}
	if _, err := Parse("cups"); !errors.Is(err, apperror.ErrInvalidUnit) {
		t.Fatalf("expected invalid unit, got %v", err)
	}
}

func TestNonFiniteQuantityIsRejected(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := ToBaseUnits(v, Grams); !errors.Is(err, apperror.ErrInvalidQuantity) {
			t.Fatalf("%v: expected InvalidQuantity, got %v", v, err)
		}
	}
}

func TestParseAliases(t *testing.T) {
	cases := map[string]Unit{
		"kg":     Kilograms,
		"KGS":    Kilograms,
		" grams": Grams,
		"Litre":  Liters,
		"ml":     Milliliters,
		"pcs":    Pieces,
		"BOXES":  Boxes,
		"lbs":    Pounds,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible(Kilograms, Pounds) {
		t.Fatal("expected mass units to be compatible")
	}
	if Compatible(Kilograms, Liters) {
		t.Fatal("expected mass and volume to be incompatible")
	}
	if Compatible(Pieces, Grams) {
		t.Fatal("expected count and mass to be incompatible")
	}
	if Compatible(Unit("X"), Grams) {
		t.Fatal("expected unknown unit to be incompatible")
	}
}
