// Command insurectl is the InsureAI operator CLI.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

// Globals is bound into every command's Run method.
type Globals struct {
	Ctx    context.Context
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer

	store      string
	sqlitePath string
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("insurectl"),
		kong.Description("Operator tooling for the InsureAI customer service backend."),
		kong.UsageOnError(),
		kongVars(),
	)
	err := kctx.Run(&Globals{
		Ctx:        ctx,
		Logger:     logger,
		In:         os.Stdin,
		Out:        os.Stdout,
		store:      cli.Store,
		sqlitePath: cli.SQLitePath,
	})
	kctx.FatalIfErrorf(err)
}
