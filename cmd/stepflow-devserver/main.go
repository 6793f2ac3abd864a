// Command stepflow-devserver is a minimal local host for a stepflow
// app: it registers a couple of demonstration functions and serves them
// behind the comm handler, for exercising the SDK without a real
// platform account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stepflow"
	"stepflow/internal/config"
	"stepflow/serve"
)

func main() {
	var (
		port = flag.Int("port", 8288, "port to listen on")
		bind = flag.String("bind", "127.0.0.1", "address to bind to (use 0.0.0.0 for all interfaces)")
	)
	flag.Parse()

	if err := run(*port, *bind); err != nil {
		log.Fatal(err)
	}
}

func run(port int, bindAddr string) error {
	if bindAddr == "0.0.0.0" {
		log.Println("WARNING: binding to all interfaces (0.0.0.0); use only on a trusted network")
	}

	cfg := config.Default()
	cfg.AppID = "stepflow-devserver"
	cfg.Signing.Disabled = true

	client, err := stepflow.NewClient(stepflow.ClientOpts{Config: cfg})
	if err != nil {
		return fmt.Errorf("stepflow-devserver: building client: %w", err)
	}
	if err := registerDemoFunctions(client); err != nil {
		return fmt.Errorf("stepflow-devserver: registering demo functions: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/stepflow", serve.New(client))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	addr := net.JoinHostPort(bindAddr, strconv.Itoa(port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("stepflow devserver listening on http://%s/api/stepflow", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func registerDemoFunctions(client *stepflow.Client) error {
	helloWorld := stepflow.CreateFunction(
		stepflow.FunctionOpts{
			ID:   "hello-world",
			Name: "Hello World",
			Triggers: []stepflow.Trigger{
				{Event: "demo/hello.requested"},
			},
		},
		func(ctx context.Context, run *stepflow.RunContext) (any, error) {
			greeting, err := run.Step.Run("build-greeting", func(ctx context.Context) (any, error) {
				name := "world"
				if run.Event != nil {
					if n, ok := run.Event.Data["name"].(string); ok && n != "" {
						name = n
					}
				}
				return fmt.Sprintf("Hello, %s!", name), nil
			})
			if err != nil {
				return nil, err
			}
			if err := run.Step.Sleep("cool-off", time.Second); err != nil {
				return nil, err
			}
			return greeting, nil
		},
	)
	if err := client.RegisterFunction(helloWorld); err != nil {
		return err
	}

	retryDemo := stepflow.CreateFunction(
		stepflow.FunctionOpts{
			ID:      "flaky-charge",
			Name:    "Flaky Charge Demo",
			Retries: 3,
			Triggers: []stepflow.Trigger{
				{Event: "demo/charge.requested"},
			},
		},
		func(ctx context.Context, run *stepflow.RunContext) (any, error) {
			return run.Step.Run("charge-card", func(ctx context.Context) (any, error) {
				return map[string]any{"charged": true}, nil
			})
		},
	)
	return client.RegisterFunction(retryDemo)
}
