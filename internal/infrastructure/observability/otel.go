package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds pipeline-level application metrics
type Metrics struct {
	DiagnosisCount     metric.Int64Counter
	SearchDuration     metric.Float64Histogram
	GenerationAttempts metric.Int64Counter
	AuditWriteFailures metric.Int64Counter
	BatchItemFailures  metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing and metrics export
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	shutdown := func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
		return meterProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/obiora/CropAdvisoryDesign/backend")

	diagnosisCount, err := meter.Int64Counter(
		"diagnosis.request.count",
		metric.WithDescription("Number of diagnosis requests"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"retrieval.search.duration",
		metric.WithDescription("Candidate search duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	generationAttempts, err := meter.Int64Counter(
		"generation.attempt.count",
		metric.WithDescription("Number of generation attempts"),
	)
	if err != nil {
		return nil, err
	}

	auditWriteFailures, err := meter.Int64Counter(
		"retrieval.audit.write_failures",
		metric.WithDescription("Number of swallowed audit write failures"),
	)
	if err != nil {
		return nil, err
	}

	batchItemFailures, err := meter.Int64Counter(
		"ingestion.batch.item_failures",
		metric.WithDescription("Number of failed ingestion batch items"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DiagnosisCount:     diagnosisCount,
		SearchDuration:     searchDuration,
		GenerationAttempts: generationAttempts,
		AuditWriteFailures: auditWriteFailures,
		BatchItemFailures:  batchItemFailures,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/obiora/CropAdvisoryDesign/backend")
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordSearchMetric records a candidate search duration
func RecordSearchMetric(ctx context.Context, metrics *Metrics, modality string, duration time.Duration, degraded bool) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("retrieval.modality", modality),
		attribute.Bool("retrieval.degraded", degraded),
	}
	metrics.SearchDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordGenerationAttempt records one generation attempt and its outcome
func RecordGenerationAttempt(ctx context.Context, metrics *Metrics, outcome string) {
	if metrics == nil {
		return
	}
	metrics.GenerationAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("generation.outcome", outcome),
	))
}
