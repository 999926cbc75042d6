// Command jenkins-mcp serves Jenkins job and build tools over the Model
// Context Protocol, on stdio or HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golovatskygroup/mcp-jenkins/internal/config"
	"github.com/golovatskygroup/mcp-jenkins/internal/httpserver"
	"github.com/golovatskygroup/mcp-jenkins/internal/jenkins"
	"github.com/golovatskygroup/mcp-jenkins/internal/logging"
	"github.com/golovatskygroup/mcp-jenkins/internal/server"
	"github.com/golovatskygroup/mcp-jenkins/internal/tools"
	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const (
	serverName      = "jenkins-mcp-server"
	shutdownTimeout = 10 * time.Second
)

var version = "dev"

type options struct {
	configPath string
	envFile    string
	transport  string
	host       string
	port       int
	logLevel   string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("jenkins-mcp", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "load KEY=VALUE pairs from this file if it exists")
	flagSet.StringVar(&opts.transport, "transport", "stdio", "transport to serve: stdio or http")
	flagSet.StringVar(&opts.host, "host", "", "HTTP listen host (overrides HOST)")
	flagSet.IntVar(&opts.port, "port", 0, "HTTP listen port (overrides PORT)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	versionFlag := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *versionFlag {
		fmt.Println(serverName, version)
		return nil
	}
	if opts.transport != "stdio" && opts.transport != "http" {
		return fmt.Errorf("unknown transport %q: want stdio or http", opts.transport)
	}

	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.HTTP.Host = opts.host
	}
	if opts.port != 0 {
		cfg.HTTP.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	logger.Debug().Interface("config", cfg.Redacted()).Msg("configuration loaded")
	if !cfg.VerifyTLS() {
		logger.Warn().Str("jenkins_url", cfg.Jenkins.URL).Msg("TLS certificate verification is disabled for Jenkins")
	}

	client, err := jenkins.New(jenkins.Config{
		BaseURL:   cfg.Jenkins.URL,
		Username:  cfg.Jenkins.Username,
		Token:     cfg.Jenkins.Token,
		VerifyTLS: cfg.VerifyTLS(),
	})
	if err != nil {
		return err
	}
	dispatcher, err := tools.NewDispatcher(client, logger)
	if err != nil {
		return err
	}
	srv := server.New(dispatcher, server.Info{Name: serverName, Version: version}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("transport", opts.transport).
		Str("jenkins_url", client.BaseURL()).
		Str("version", version).
		Msg("starting")

	if opts.transport == "stdio" {
		return srv.ServeStdio(ctx, mcp.NewTransport(os.Stdin, os.Stdout))
	}
	return serveHTTP(ctx, cfg, client.BaseURL(), srv, logger)
}

func serveHTTP(ctx context.Context, cfg config.Config, jenkinsURL string, h mcp.Handler, logger zerolog.Logger) error {
	var draining atomic.Bool
	ready := func(context.Context) error {
		if draining.Load() {
			return errors.New("shutting down")
		}
		return nil
	}

	front := httpserver.New(h, httpserver.Options{
		Name:            serverName,
		Version:         version,
		ProtocolVersion: server.ProtocolVersion,
		JenkinsURL:      jenkinsURL,
	}, ready, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           front.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Str("endpoint", httpserver.MCPPath).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		draining.Store(true)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
