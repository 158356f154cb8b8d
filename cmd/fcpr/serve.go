package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/raman-lab/fcpr/internal/api"
)

func (e *env) runServe(args []string) int {
	fs := e.newFlagSet("serve")
	listen := fs.String("listen", e.cfg.GetListen(), "Listen address")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *listen == "" {
		fmt.Fprintln(e.stderr, "Error: listen address is required")
		return exitUsage
	}

	runs, closeStore, err := e.openRunStore()
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeStore()
	if runs == nil {
		log.Printf("no database configured; run history disabled")
	}

	ctx, stop := signalContext()
	defer stop()

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(api.NewServer(e.cfg, runs).ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			fmt.Fprintf(e.stderr, "failed to start server: %v\n", err)
			return exitError
		}
		return exitOK
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
	return exitOK
}
