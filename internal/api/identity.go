package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"venuebook/internal/models"
)

// Identity headers set by the upstream gateway. gRPC metadata keys are the lower-case forms.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type requesterKey struct{}

// ParseRequester turns the gateway identity headers into a Requester.
func ParseRequester(rawID, rawRole string) (models.Requester, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return models.Requester{}, fmt.Errorf("missing %s", headerUserID)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return models.Requester{}, fmt.Errorf("invalid %s %q", headerUserID, rawID)
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return models.Requester{}, err
	}
	return models.Requester{UserID: id, Role: role}, nil
}

func WithRequester(ctx context.Context, who models.Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, who)
}

func RequesterFrom(ctx context.Context) (models.Requester, bool) {
	who, ok := ctx.Value(requesterKey{}).(models.Requester)
	return who, ok
}
