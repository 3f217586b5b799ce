package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/and161185/reseller-portal/internal/errs"
)

// ErrorDomain is the ErrorInfo domain attached to portal errors.
const ErrorDomain = "portal.v1"

// Reasons carried in ErrorInfo details.
const (
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonAdminExists         = "ADMIN_EXISTS"
	ReasonLedgerMismatch      = "LEDGER_MISMATCH"
)

// toStatus maps a service error onto a gRPC status. Store failures are not
// echoed to the caller.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var (
		ve *errs.ValidationError
		ie *errs.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &ve):
		return withDetails(codes.InvalidArgument, err.Error(), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: ve.Field, Description: ve.Reason}},
		})
	case errors.As(err, &ie):
		return withDetails(codes.FailedPrecondition, err.Error(), &errdetails.ErrorInfo{
			Reason: ReasonInsufficientBalance,
			Domain: ErrorDomain,
			Metadata: map[string]string{
				"required": ie.Required.StringFixed(2),
				"current":  ie.Current.StringFixed(2),
				"shortage": ie.Shortage.StringFixed(2),
			},
		})
	case errors.Is(err, errs.ErrAdminExists):
		return withDetails(codes.AlreadyExists, "admin already exists", &errdetails.ErrorInfo{
			Reason: ReasonAdminExists, Domain: ErrorDomain,
		})
	case errors.Is(err, errs.ErrLedgerMismatch):
		return withDetails(codes.DataLoss, err.Error(), &errdetails.ErrorInfo{
			Reason: ReasonLedgerMismatch, Domain: ErrorDomain,
		})
	case errors.Is(err, errs.ErrInternal):
		return status.Error(codes.Internal, "internal")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrDuplicateUsername):
		return status.Error(codes.AlreadyExists, "username already exists")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	}
	return status.Error(codes.Internal, "internal")
}

func withDetails(c codes.Code, msg string, detail protoadapt.MessageV1) error {
	st := status.New(c, msg)
	dst, err := st.WithDetails(detail)
	if err != nil {
		return st.Err()
	}
	return dst.Err()
}
