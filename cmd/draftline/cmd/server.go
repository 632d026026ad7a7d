package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/draftline/draftline/api"
	"github.com/draftline/draftline/config"
	"github.com/draftline/draftline/keystore"
	"github.com/draftline/draftline/session"
)

var (
	configPath string
	tlsCert    string
	tlsKey     string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the content generation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		master, err := loadMasterKey(cfg)
		if err != nil {
			return err
		}
		// Wipe every enclave, stored key included, on the way out.
		defer memguard.Purge()

		registry := session.NewRegistry(
			session.WithIdleTTL(cfg.SessionIdleTTL),
			session.WithAbsoluteTTL(cfg.SessionAbsoluteTTL),
			session.WithSweepInterval(cfg.SweepInterval),
			session.WithLogger(logger),
		)
		registry.StartSweeper()
		defer registry.StopSweeper()

		a := api.New(cfg, registry, master, api.WithLogger(logger))
		defer a.Close()

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           a.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      120 * time.Second, // generation calls are slow
			IdleTimeout:       60 * time.Second,
		}

		useTLS := tlsCert != "" && tlsKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Listening on %s (tls: %v)...\n", cfg.Listen, useTLS)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// loadMasterKey derives the key-store master key from ENCRYPTION_KEY when
// set, so every replica of a horizontally scaled deployment derives the
// same key. Without it a random per-process key is used; stored provider
// keys then die with the process, which is the intended single-node mode.
func loadMasterKey(cfg config.Config) (*keystore.MasterKey, error) {
	if cfg.EncryptionKey != "" {
		master, err := keystore.MasterKeyFromBase64(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
		return master, nil
	}
	fmt.Println("ENCRYPTION_KEY not set; using an ephemeral per-process master key")
	return keystore.NewMasterKey()
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
