package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/telemetry"
)

var tracer = telemetry.Tracer("insureai/tools")

// Message returned for any unexpected capability failure.
const executionFailedMessage = "Something went wrong while retrieving your information. Please try again later."

// Invoker runs registered tools under the secure-invocation rules.
type Invoker struct {
	registry *Registry
	logger   *slog.Logger

	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewInvoker creates an Invoker over registry.
func NewInvoker(registry *Registry, logger *slog.Logger) *Invoker {
	meter := telemetry.Meter("insureai/tools")
	invocations, _ := meter.Int64Counter("insureai.tool.invocations",
		metric.WithDescription("Tool invocations by tool and result status"),
	)
	duration, _ := meter.Float64Histogram("insureai.tool.duration",
		metric.WithDescription("Tool invocation latency (ms)"),
		metric.WithUnit("ms"),
	)
	return &Invoker{
		registry:    registry,
		logger:      logger,
		invocations: invocations,
		duration:    duration,
	}
}

// Registry returns the invoker's tool registry.
func (inv *Invoker) Registry() *Registry { return inv.registry }

// Invoke runs req for principal and always returns a result; failures are
// folded into error results rather than returned.
func (inv *Invoker) Invoke(ctx context.Context, req model.ToolRequest, principal model.Principal) (result model.ToolResult) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "tool."+req.Tool)
	defer func() {
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		attrs := metric.WithAttributes(
			attribute.String("tool", req.Tool),
			attribute.String("status", string(result.Status)),
		)
		inv.invocations.Add(ctx, 1, attrs)
		inv.duration.Record(ctx, elapsed, attrs)

		span.SetAttributes(
			attribute.String("insureai.tool", req.Tool),
			attribute.String("insureai.tool.status", string(result.Status)),
		)
		if result.Status == model.ResultError && result.Code == model.CodeExecution {
			span.SetStatus(codes.Error, result.Message)
		}
		span.End()

		inv.logger.Info("tool invoked",
			"tool", req.Tool,
			"call_id", req.ID,
			"status", result.Status,
			"code", result.Code,
			"principal", string(principal),
			"duration_ms", elapsed,
		)
	}()

	spec, ok := inv.registry.Get(req.Tool)
	if !ok {
		return model.ValidationError(fmt.Sprintf("Unknown tool %q.", req.Tool))
	}
	if principal == "" && !spec.Anonymous {
		return model.Denied("Access denied: authentication required.")
	}
	args := Args(req.Args)
	if args == nil {
		args = Args{}
	}
	if field, msg := spec.Validate(args); msg != "" {
		return model.FieldError(field, msg)
	}
	return inv.run(ctx, spec, principal, args)
}

func (inv *Invoker) run(ctx context.Context, spec Spec, principal model.Principal, args Args) (result model.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("tool panicked",
				"tool", spec.Name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = model.ExecutionError(executionFailedMessage)
		}
	}()

	res, err := spec.Run(ctx, principal, args)
	if err != nil {
		inv.logger.Error("tool failed", "tool", spec.Name, "error", err)
		return model.ExecutionError(executionFailedMessage)
	}
	return res
}
