package api

import (
	"errors"
	"net/http"

	"venuebook/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func httpStatus(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidDate, service.KindInvalidSlot, service.KindInvalidRequest,
		service.KindCapacityExceeded, service.KindLockedWindow:
		return http.StatusBadRequest
	case service.KindSlotConflict, service.KindAlreadyCancelled:
		return http.StatusConflict
	case service.KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(kind service.Kind) codes.Code {
	switch kind {
	case service.KindNotFound:
		return codes.NotFound
	case service.KindInvalidDate, service.KindInvalidSlot, service.KindInvalidRequest:
		return codes.InvalidArgument
	case service.KindSlotConflict:
		return codes.AlreadyExists
	case service.KindCapacityExceeded:
		return codes.ResourceExhausted
	case service.KindLockedWindow, service.KindAlreadyCancelled:
		return codes.FailedPrecondition
	case service.KindUnauthorized:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// errorMessage keeps unclassified failures out of responses.
func errorMessage(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr.Error()
	}
	return "internal error"
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	writeJSON(w, httpStatus(kind), errorResponse{Error: errorMessage(err), Kind: string(kind)})
}

func toGRPCError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(grpcCode(service.KindOf(err)), errorMessage(err))
}
