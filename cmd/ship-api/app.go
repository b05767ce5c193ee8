package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	shipmentsapi "github.com/trackfleet/trackfleet/internal/api/shipments_api"
)

type shipAPIOpts struct {
	httpAddr string

	onListen func(httpAddr string)
}

func runShipAPI(ctx context.Context, opts shipAPIOpts, svc shipmentsapi.Service) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	api := shipmentsapi.New(svc)
	srv := &http.Server{Handler: api.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}
