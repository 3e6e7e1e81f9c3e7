package apperror

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to every status.
const Domain = "omnipos.stock"

// Translator renders the user-facing message for a code.
type Translator interface {
	Translate(locale string, code Code, data map[string]string) string
}

// ToGRPCStatus converts err into a gRPC status error carrying ErrorInfo and,
// when a translator is supplied, a LocalizedMessage.
func ToGRPCStatus(err error, locale string, tr Translator) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	metadata := metadataOf(err)

	msg := err.Error()
	if code == CodeInternal {
		// internals are not leaked to clients
		msg = "internal error"
	}

	st := status.New(code.GRPCCode(), msg)
	details := []*errdetails.ErrorInfo{{Reason: string(code), Domain: Domain, Metadata: metadata}}
	withInfo, derr := st.WithDetails(details[0])
	if derr != nil {
		return st.Err()
	}
	if tr == nil {
		return withInfo.Err()
	}
	withMsg, derr := withInfo.WithDetails(&errdetails.LocalizedMessage{
		Locale:  locale,
		Message: tr.Translate(locale, code, metadata),
	})
	if derr != nil {
		return withInfo.Err()
	}
	return withMsg.Err()
}

func metadataOf(err error) map[string]string {
	var shortage *InsufficientStockError
	if errors.As(err, &shortage) {
		return shortage.Metadata()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
