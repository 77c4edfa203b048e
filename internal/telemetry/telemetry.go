// Package telemetry wires structured logging, metrics and tracing for Finey.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Options selects how telemetry is exported.
type Options struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
}

// Setup returns the process logger and a shutdown func. With no OTLP endpoint
// the logger writes to w and nothing is exported.
func Setup(ctx context.Context, opts Options, w io.Writer) (*slog.Logger, func(context.Context) error, error) {
	if opts.OTLPEndpoint == "" {
		return NewLocalLogger(w, opts.LogLevel, opts.LogFormat), func(context.Context) error { return nil }, nil
	}

	conn, err := grpc.NewClient(opts.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	tp, err := InitTracerProvider(ctx, conn, opts.ServiceName, opts.Environment)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	mp, err := InitMeterProvider(ctx, conn, opts.ServiceName, opts.Environment)
	if err != nil {
		tp.Shutdown(ctx)
		conn.Close()
		return nil, nil, err
	}
	lp, logger, err := InitLoggerProvider(ctx, conn, opts.ServiceName, opts.Environment)
	if err != nil {
		mp.Shutdown(ctx)
		tp.Shutdown(ctx)
		conn.Close()
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			lp.Shutdown(ctx),
			mp.Shutdown(ctx),
			tp.Shutdown(ctx),
			conn.Close(),
		)
	}
	return logger, shutdown, nil
}
