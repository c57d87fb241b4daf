package requestdata

import (
	"context"

	"github.com/matchahq/matcha-backend/internal/types"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData is attached by the auth middleware after token verification.
type RequestData struct {
	UserID string
	Email  string
	Tier   types.Tier
}
