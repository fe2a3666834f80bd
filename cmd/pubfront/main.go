package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/pubfront"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "serve":
		err = runServe(log, args)
	case "build":
		err = runBuild(log, args)
	case "import":
		err = runImport(log, args)
	case "version":
		fmt.Printf("pubfront %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("failed")
		os.Exit(1)
	}
}

func loadConfig(name string, args []string) (pubfront.SiteConfig, []string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("config", pubfront.EnvOr("PUBFRONT_CONFIG", "pubfront.yaml"), "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return pubfront.SiteConfig{}, nil, err
	}
	cfg, err := pubfront.LoadConfig(*path)
	return cfg, fs.Args(), err
}

func runServe(log zerolog.Logger, args []string) error {
	cfg, _, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	app := pubfront.New(cfg, pubfront.WithLogger(log))
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runBuild(log zerolog.Logger, args []string) error {
	cfg, rest, err := loadConfig("build", args)
	if err != nil {
		return err
	}
	dir := "dist"
	if len(rest) > 0 {
		dir = rest[0]
	}
	app := pubfront.New(cfg, pubfront.WithLogger(log))
	defer app.Close()
	_, err = app.Build(context.Background(), dir)
	return err
}

func runImport(log zerolog.Logger, args []string) error {
	cfg, rest, err := loadConfig("import", args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return errors.New("usage: pubfront import [-config file] <posts.json>")
	}
	f, err := os.Open(rest[0])
	if err != nil {
		return err
	}
	defer f.Close()

	app := pubfront.New(cfg)
	store, err := pubfront.NewStore(app.Config.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.ImportJSON(context.Background(), f)
	if err != nil {
		return err
	}
	log.Info().Int("posts", n).Str("database", app.Config.DatabasePath).Msg("imported")
	return nil
}

func printUsage() {
	fmt.Println(`pubfront - A blog frontend for a headless CMS, built with Go, Echo, and templ

Usage:
  pubfront <command> [-config file] [arguments]

Commands:
  serve               Start the web server
  build [dir]         Pre-render the site into dir (default "dist")
  import <file.json>  Load posts from a JSON array into the SQLite backend
  version             Print the pubfront version
  help                Show this help message

Configuration is read from pubfront.yaml (or -config) and overridden by
environment variables such as PRISMIC_ENDPOINT, SESSION_SECRET and REDIS_URL.`)
}
