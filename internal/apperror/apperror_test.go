package apperror

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("restock: %w", WithMetadata(CodeItemNotFound, "stocked item x not found", map[string]string{"item_id": "x"}))

	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ItemNotFound match")
	}
	if errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("unexpected RecipeNotFound match")
	}
	if CodeOf(err) != CodeItemNotFound {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("reserve: %w", InsufficientStock("i1", "Flour", 12000, 10000))

	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStock match")
	}
	var shortage *InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected errors.As to find the shortage")
	}
	if shortage.ItemName != "Flour" || shortage.Needed != 12000 || shortage.Available != 10000 {
		t.Fatalf("unexpected detail %+v", shortage)
	}
	if got := shortage.Error(); got != "insufficient stock for Flour: needed 12000, available 10000" {
		t.Fatalf("unexpected message %q", got)
	}
	if CodeOf(err) != CodeInsufficientStock {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Wrap(CodeConcurrencyConflict, "transaction aborted after 3 attempts", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if !IsRetryable(err) {
		t.Fatalf("expected conflict to be retryable")
	}
	if IsRetryable(ErrInsufficientStock) {
		t.Fatalf("shortage must not be retryable")
	}
}

func TestGRPCCodes(t *testing.T) {
	tests := map[Code]codes.Code{
		CodeInvalidUnit:         codes.InvalidArgument,
		CodeInvalidQuantity:     codes.InvalidArgument,
		CodeInvalidTransition:   codes.InvalidArgument,
		CodeItemNotFound:        codes.NotFound,
		CodeIngredientNotFound:  codes.NotFound,
		CodeInsufficientStock:   codes.FailedPrecondition,
		CodeRecipeInUse:         codes.FailedPrecondition,
		CodeConcurrencyConflict: codes.Aborted,
		CodeDuplicateRequest:    codes.AlreadyExists,
		CodeInternal:            codes.Internal,
	}
	for code, want := range tests {
		if got := code.GRPCCode(); got != want {
			t.Errorf("%s: got %s, want %s", code, got, want)
		}
	}
}

type staticTranslator struct{}

func (staticTranslator) Translate(locale string, code Code, data map[string]string) string {
	return locale + ":" + string(code) + ":" + data["item_name"]
}

func TestToGRPCStatusDetails(t *testing.T) {
	err := ToGRPCStatus(InsufficientStock("i1", "Flour", 12000, 10000), "en", staticTranslator{})

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.FailedPrecondition {
		t.Fatalf("unexpected status %v", err)
	}

	var info *errdetails.ErrorInfo
	var msg *errdetails.LocalizedMessage
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			info = v
		case *errdetails.LocalizedMessage:
			msg = v
		}
	}
	if info == nil || info.Reason != string(CodeInsufficientStock) || info.Metadata["needed"] != "12000" {
		t.Fatalf("unexpected error info %+v", info)
	}
	if msg == nil || msg.Message != "en:INSUFFICIENT_STOCK:Flour" {
		t.Fatalf("unexpected localized message %+v", msg)
	}
}

func TestToGRPCStatusMasksInternalErrors(t *testing.T) {
	err := ToGRPCStatus(errors.New("pq: connection refused"), "", nil)

	st, _ := status.FromError(err)
	if st.Code() != codes.Internal || st.Message() != "internal error" {
		t.Fatalf("internal error leaked: %v", err)
	}
}
