package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestDisabledProviderCreatesSpans(t *testing.T) {
	p, err := InitTracer(Config{ServiceName: "cortx-run", Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	defer p.Shutdown(context.Background())

	if p.Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
	_, span := p.Tracer().Start(context.Background(), "launcher.spawn", trace.WithAttributes(attribute.String("child", "compute")))
	span.End()
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on nil provider = %v", err)
	}
}

func TestEnabledProviderDoesNotDialOnInit(t *testing.T) {
	// The batcher exports lazily, so init succeeds without a collector
	p, err := InitTracer(Config{
		ServiceName:  "cortx-run",
		SessionID:    "test-session",
		OTLPEndpoint: "http://127.0.0.1:1",
		Enabled:      true,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
