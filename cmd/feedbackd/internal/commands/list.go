package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/logger"
)

type ListCmd struct {
	Store StoreFlags `embed:"" prefix:"store-"`
	JSON  bool       `help:"print JSON instead of a table"`

	out io.Writer
}

func (c *ListCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	rdb, err := c.Store.redisClient(ctx, log)
	if err != nil {
		return err
	}

	cfg := feedback.DefaultConfig()
	c.Store.apply(&cfg)
	cfg.Audit.Enabled = false
	cfg.RateLimit.Enabled = false

	builder := feedback.New().WithConfig(cfg).WithLogger(log)
	if rdb != nil {
		defer rdb.Close()
		builder = builder.WithRedis(rdb)
	}
	svc, err := builder.Build()
	if err != nil {
		return err
	}
	defer svc.Close()

	all, err := svc.Store().List(ctx)
	if err != nil {
		return err
	}
	return c.print(feedback.Summarize(all))
}

func (c *ListCmd) print(rows []feedback.Summary) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tASKED\tSKIPPED\tANSWERED\tLAST ACCESS")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			row.ID, row.Name, kind(row), row.Asked, row.Skipped, row.Answered,
			time.UnixMilli(row.LastAccess).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func kind(row feedback.Summary) string {
	switch {
	case row.Cap:
		return "capability"
	case row.Keyed:
		return "keyed"
	default:
		return "legacy"
	}
}
