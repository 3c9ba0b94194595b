package observability

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities
type Tracer struct {
	serviceName string
	enabled     bool
	lambda      bool
}

// NewTracer creates a new tracer instance. A disabled tracer never touches X-Ray.
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
		lambda:      os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",
	}
}

// Enabled reports whether spans are recorded
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// Start opens a segment, or a subsegment when ctx already carries one.
// Lambda owns the root segment, so there only subsegments are opened.
// The returned func closes it and records err when non-nil.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, func(error)) {
	if !t.Enabled() {
		return ctx, func(error) {}
	}

	var seg *xray.Segment
	if t.lambda || xray.GetSegment(ctx) != nil {
		ctx, seg = xray.BeginSubsegment(ctx, name)
	} else {
		ctx, seg = xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
	}
	if seg == nil {
		return ctx, func(error) {}
	}

	return ctx, func(err error) {
		seg.Close(err)
	}
}

// TraceFunction wraps a function with tracing
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, end := t.Start(ctx, name)
	err := fn(ctx)
	end(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if !t.Enabled() {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}
