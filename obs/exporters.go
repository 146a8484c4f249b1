package obs

import (
	"context"
	"crypto/tls"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const (
	defaultOTLPEndpoint = "localhost:4317"
	exporterDialTimeout = 10 * time.Second
)

// newOTLPExporter builds the span exporter for the configured collector
// endpoint (Settings.OTelEndpoint via Options). gRPC is tried first;
// endpoints that refuse the dial fall back to OTLP/HTTP so a collector
// behind a plain HTTP ingress still works.
func newOTLPExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	exporter, grpcErr := dialOTLPGRPC(ctx, endpoint, opts)
	if grpcErr == nil {
		return exporter, nil
	}
	exporter, httpErr := dialOTLPHTTP(ctx, endpoint, opts)
	if httpErr != nil {
		return nil, grpcErr
	}
	return exporter, nil
}

func dialOTLPGRPC(ctx context.Context, endpoint string, opts Options) (sdktrace.SpanExporter, error) {
	dialOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	}
	if opts.Insecure {
		dialOpts = append(dialOpts, otlptracegrpc.WithInsecure())
	} else {
		dialOpts = append(dialOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
	}
	if len(opts.Headers) > 0 {
		dialOpts = append(dialOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}
	return otlptracegrpc.New(ctx, dialOpts...)
}

func dialOTLPHTTP(ctx context.Context, endpoint string, opts Options) (sdktrace.SpanExporter, error) {
	httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if opts.Insecure {
		httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(opts.Headers))
	}
	return otlptracehttp.New(ctx, httpOpts...)
}
