package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Metadata keys set by the upstream gateway.
const (
	MerchantIDHeader = "x-merchant-id"
	UserIDHeader     = "x-user-id"
	LocaleHeader     = "accept-language"
)

type contextKey string

const (
	merchantIDKey contextKey = "merchant_id"
	userIDKey     contextKey = "user_id"
	localeKey     contextKey = "locale"
)

type UserContext struct {
	MerchantID string
	UserID     string
	Locale     string
}

// FromMetadata reads the caller identity forwarded by the gateway.
func FromMetadata(ctx context.Context) UserContext {
	return UserContext{
		MerchantID: metadataValue(ctx, MerchantIDHeader),
		UserID:     metadataValue(ctx, UserIDHeader),
		Locale:     metadataValue(ctx, LocaleHeader),
	}
}

// WithUser stores u in ctx for handlers further down the chain.
func WithUser(ctx context.Context, u UserContext) context.Context {
	ctx = context.WithValue(ctx, merchantIDKey, u.MerchantID)
	ctx = context.WithValue(ctx, userIDKey, u.UserID)
	return context.WithValue(ctx, localeKey, u.Locale)
}

// GetMerchantID prefers the value placed by the interceptor and falls back
// to raw metadata.
func GetMerchantID(ctx context.Context) string {
	if val, ok := ctx.Value(merchantIDKey).(string); ok && val != "" {
		return val
	}
	return metadataValue(ctx, MerchantIDHeader)
}

func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok && val != "" {
		return val
	}
	return metadataValue(ctx, UserIDHeader)
}

func GetLocale(ctx context.Context) string {
	if val, ok := ctx.Value(localeKey).(string); ok && val != "" {
		return val
	}
	return metadataValue(ctx, LocaleHeader)
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if val := md.Get(key); len(val) > 0 {
		return val[0]
	}
	return ""
}
