package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-chat-tcp/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "v0", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatal("disabled setup replaced the tracer provider")
	}
}

func TestSetupOTel_SetsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)

		var buf bytes.Buffer
		cfg := enabled("chatd-test")
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(context.Background(), cfg, "v1.2.3", zerolog.New(&buf))
		if err != nil {
			t.Fatalf("insecure=%v: unexpected err: %v", insecure, err)
		}

		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected *sdktrace.TracerProvider", insecure)
		}
		if !strings.Contains(buf.String(), "tracing enabled") {
			t.Fatalf("insecure=%v: setup not logged: %q", insecure, buf.String())
		}

		ctx, span := otel.Tracer("test").Start(context.Background(), "span")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if carrier.Get("traceparent") == "" {
			t.Fatalf("insecure=%v: traceparent not injected", insecure)
		}

		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestSetupOTel_ErrorsLeaveGlobalsIntact(t *testing.T) {
	tests := []struct {
		name  string
		patch func() func()
	}{
		{"exporter", func() func() {
			orig := newOTLPExporterFn
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("boom-exporter")
			}
			return func() { newOTLPExporterFn = orig }
		}},
		{"resource", func() func() {
			orig := newServiceResourceFn
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
			return func() { newServiceResourceFn = orig }
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preserveOTelGlobals(t)
			defer tt.patch()()

			prevTP := otel.GetTracerProvider()
			prevProp := otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), enabled("svc"), "v0", zerolog.Nop()); err == nil {
				t.Fatal("expected error, got nil")
			}
			if otel.GetTracerProvider() != prevTP {
				t.Fatal("tracer provider changed on failure")
			}
			if otel.GetTextMapPropagator() != prevProp {
				t.Fatal("propagator changed on failure")
			}
		})
	}
}
