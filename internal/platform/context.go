package platform

import (
	"context"

	"github.com/caldera-labs/resolvd/internal/model"
)

type contextKey string

const keyDescriptor contextKey = "platform_descriptor"

// WithDescriptor returns a new context carrying the effective platform
// descriptor for the current request.
func WithDescriptor(ctx context.Context, d model.PlatformDescriptor) context.Context {
	return context.WithValue(ctx, keyDescriptor, d)
}

// DescriptorFromContext extracts the request's platform descriptor.
// The second return is false when no descriptor was attached.
func DescriptorFromContext(ctx context.Context) (model.PlatformDescriptor, bool) {
	d, ok := ctx.Value(keyDescriptor).(model.PlatformDescriptor)
	return d, ok
}
