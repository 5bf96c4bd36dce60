package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/microhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	concurrency := flag.Int("concurrency", cfg.Fetch.Concurrency, "Max in-flight retrievals per batch")
	manifestPath := flag.String("manifest", "", "YAML manifest of apps to mount at startup")
	serve := flag.Bool("serve", false, "Keep serving after mounting the manifest")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Fetch.Concurrency = *concurrency
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	logger := srv.Logger()

	if *manifestPath != "" {
		if err := compose(srv, *manifestPath); err != nil {
			logger.Error("Compose failed", zap.Error(err))
			shutdown(srv)
			os.Exit(1)
		}
		if !*serve {
			shutdown(srv)
			return
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		shutdown(srv)
	case err := <-errChan:
		logger.Fatal("Server error", zap.Error(err))
	}
}

// compose mounts every app of the manifest in order and prints its markup.
// A failed app is reported and the rest still mount.
func compose(srv *server.Server, path string) error {
	manifest, err := loadManifest(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	failed := 0
	for _, req := range manifest.Apps {
		inst, err := srv.Apps().Mount(ctx, req)
		if err != nil {
			failed++
			continue
		}
		out, err := srv.Apps().Render(inst.ID().String())
		if err != nil {
			return err
		}
		fmt.Println(out)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d apps failed to mount", failed, len(manifest.Apps))
	}
	return nil
}

func shutdown(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
