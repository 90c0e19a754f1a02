package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
)

const maxMessageWidth = 60

func main() {
	_ = godotenv.Load()

	var (
		cmd     string
		limit   int
		eventID string
	)
	flag.StringVar(&cmd, "cmd", "list", "list|replay")
	flag.IntVar(&limit, "limit", 50, "rows to show for -cmd=list")
	flag.StringVar(&eventID, "event", "", "event id to replay for -cmd=replay")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.ForService("outbox-dlq", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	repo := outbox.NewDLQRepository(dbClient.DB())

	switch cmd {
	case "list":
		rows, err := repo.List(ctx, limit)
		if err != nil {
			logg.Error(ctx, "failed to list dlq entries", err)
			os.Exit(1)
		}
		if err := renderEntries(os.Stdout, rows); err != nil {
			logg.Error(ctx, "failed to render dlq entries", err)
			os.Exit(1)
		}
	case "replay":
		id, err := uuid.Parse(eventID)
		if err != nil {
			logg.Error(ctx, "invalid -event value", err)
			os.Exit(1)
		}
		ctx = logg.WithField(ctx, "event_id", id.String())
		if err := repo.Replay(ctx, id); err != nil {
			logg.Error(ctx, "failed to replay event", err)
			os.Exit(1)
		}
		logg.Info(ctx, "event returned to outbox")
	default:
		fmt.Fprintf(os.Stderr, "unknown -cmd value %q\n", cmd)
		os.Exit(2)
	}
}

func renderEntries(w io.Writer, rows []models.OutboxDLQ) error {
	table := tablewriter.NewWriter(w)
	table.Header("Event", "Type", "Aggregate", "Reason", "Attempts", "Failed at", "Error")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = shorten(*row.ErrorMessage, maxMessageWidth)
		}
		err := table.Append([]string{
			row.EventID.String(),
			string(row.EventType),
			fmt.Sprintf("%s/%s", row.AggregateType, row.AggregateID),
			string(row.ErrorReason),
			strconv.Itoa(row.AttemptCount),
			row.FailedAt.UTC().Format(time.RFC3339),
			msg,
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
