package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/Quisharoo/manager-feedback-questions-sub000/cmd/feedbackd/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug logging." env:"FEEDBACK_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd  `cmd:"" help:"Start the session API server."`
		List    commands.ListCmd   `cmd:"" help:"List every session straight from the store."`
		Keygen  commands.KeygenCmd `cmd:"" help:"Print a fresh random secret for FEEDBACK_KEY_SECRET or FEEDBACK_ADMIN_KEY."`
	}
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("feedbackd"),
		kong.Description("Feedback session store with capability links."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
