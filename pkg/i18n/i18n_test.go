package i18n

import (
	"testing"

	"golang.org/x/text/language"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
)

func TestTranslateInsufficientStock(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	shortage := apperror.InsufficientStock("i1", "Flour", 12000, 10000)

	tests := []struct {
		locale string
		want   string
	}{
		{"en", "Insufficient stock for Flour: needed 12000, available 10000"},
		{"en-US", "Insufficient stock for Flour: needed 12000, available 10000"},
		{"id-ID", "Stok Flour tidak cukup: dibutuhkan 12000, tersedia 10000"},
		{"", "Insufficient stock for Flour: needed 12000, available 10000"},
		{"fr", "Insufficient stock for Flour: needed 12000, available 10000"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			got := tr.Translate(tt.locale, apperror.CodeInsufficientStock, shortage.Metadata())
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslateUnknownCodeFallsBack(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	got := tr.Translate("en", apperror.Code("NOT_A_CODE"), nil)
	if got != "Something went wrong, please try again later" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestLanguagesLoaded(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	for _, tag := range tr.Languages() {
		if tag == language.Indonesian {
			return
		}
	}
	t.Fatalf("indonesian catalog not loaded: %v", tr.Languages())
}
