package apperror

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidUnit         Code = "INVALID_UNIT"
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeItemNotFound        Code = "ITEM_NOT_FOUND"
	CodeIngredientNotFound  Code = "INGREDIENT_NOT_FOUND"
	CodeRecipeNotFound      Code = "RECIPE_NOT_FOUND"
	CodeOrderNotFound       Code = "ORDER_NOT_FOUND"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeRecipeInUse         Code = "RECIPE_IN_USE"
	CodeDuplicateRequest    Code = "DUPLICATE_REQUEST"
	CodeInternal            Code = "INTERNAL"
)

// GRPCCode maps the domain code onto a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidUnit, CodeInvalidQuantity, CodeInvalidArgument, CodeInvalidTransition:
		return codes.InvalidArgument
	case CodeItemNotFound, CodeIngredientNotFound, CodeRecipeNotFound, CodeOrderNotFound:
		return codes.NotFound
	case CodeInsufficientStock, CodeRecipeInUse:
		return codes.FailedPrecondition
	case CodeConcurrencyConflict:
		return codes.Aborted
	case CodeDuplicateRequest:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
