// Package observability configures OpenTelemetry tracing for the service and
// exposes the small helpers other layers use to correlate logs with traces.
package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-recipe-backend/internal/config"
)

// Test seams.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName, version string, attrs ...attribute.KeyValue) (*resource.Resource, error) {
		kv := append([]attribute.KeyValue{
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		}, attrs...)
		return resource.New(ctx, resource.WithAttributes(kv...))
	}
)

// Deployment describes how the adaptation pipeline is wired. It is stamped
// on the trace resource so spans from differently configured instances can
// be told apart.
type Deployment struct {
	Generator       string // rule|http
	KeystoreBackend string // memory|db|redis
	ProposalBackend string // memory|redis
	DBDriver        string // sqlite|postgres
	DailyLimit      int
}

func (d Deployment) attributes() []attribute.KeyValue {
	var kv []attribute.KeyValue
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			kv = append(kv, attribute.String(k, v))
		}
	}
	add("recipe.generator", d.Generator)
	add("recipe.keystore.backend", d.KeystoreBackend)
	add("recipe.proposals.backend", d.ProposalBackend)
	add("db.system", d.DBDriver)
	if d.DailyLimit > 0 {
		kv = append(kv, attribute.Int("recipe.adaptation.daily_limit", d.DailyLimit))
	}
	return kv
}

// SetupOTel configures OpenTelemetry tracing and returns a shutdown function.
// With tracing disabled it installs nothing and returns a no-op shutdown.
// Globals are only replaced after every component was built.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string, dep Deployment) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version, dep.attributes()...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// TraceIDs returns the trace and span ids of the span in ctx, or empty
// strings when ctx carries no valid span context.
func TraceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
