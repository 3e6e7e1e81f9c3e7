package middleware

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/omnipos.stock.v1.OrderService/CreateOrder"}

func TestContextInterceptorPopulatesIdentity(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(auth.MerchantIDHeader, "m-7"))

	var merchant string
	_, err := ContextInterceptor()(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		merchant = auth.GetMerchantID(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merchant != "m-7" {
		t.Fatalf("expected m-7, got %q", merchant)
	}
}

func TestErrorInterceptorMapsDomainErrors(t *testing.T) {
	_, err := ErrorInterceptor(nil)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, apperror.InsufficientStock("i1", "Flour", 12000, 10000)
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestErrorInterceptorKeepsStatusErrors(t *testing.T) {
	want := status.Error(codes.Unauthenticated, "no merchant")
	_, err := ErrorInterceptor(nil)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) && status.Code(err) != codes.Unauthenticated {
		t.Fatalf("status rewritten: %v", err)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := RecoveryInterceptor(logger.NewNop())(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("nil map")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	resp, err := LoggingInterceptor(logger.NewNop())(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("unexpected result %v, %v", resp, err)
	}
}
