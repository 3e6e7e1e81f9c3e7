package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestGetMerchantIDFallsBackToMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MerchantIDHeader, "m-1", LocaleHeader, "id"))

	if got := GetMerchantID(ctx); got != "m-1" {
		t.Fatalf("expected m-1, got %q", got)
	}
	if got := GetLocale(ctx); got != "id" {
		t.Fatalf("expected id, got %q", got)
	}
}

func TestContextValuesWinOverMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MerchantIDHeader, "from-md"))
	ctx = WithUser(ctx, UserContext{MerchantID: "from-ctx", UserID: "u-9"})

	if got := GetMerchantID(ctx); got != "from-ctx" {
		t.Fatalf("expected from-ctx, got %q", got)
	}
	if got := GetUserID(ctx); got != "u-9" {
		t.Fatalf("expected u-9, got %q", got)
	}
}

func TestMissingIdentity(t *testing.T) {
	if got := GetMerchantID(context.Background()); got != "" {
		t.Fatalf("expected empty merchant, got %q", got)
	}
}
