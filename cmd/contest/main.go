package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ScotianOG/the-soless-system-sub002/internal/app"
	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := run(ctx, application, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.Application, cmd string, args []string) error {
	rewards := application.Rewards

	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "start":
		started, err := rewards.StartNewContest(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("contest started: id=%s name=%q start=%s end=%s\n",
			started.ID, started.Name, started.StartTime.Format("2006-01-02 15:04:05"), started.EndTime.Format("2006-01-02 15:04:05"))
		return nil

	case "end":
		settled, err := rewards.EndCurrentContest(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("contest settled: id=%s qualified=%d\n", settled.ID, len(settled.Metadata.QualifiedUserIDs))
		return nil

	case "distribute":
		if len(args) < 1 {
			return fmt.Errorf("distribute requires a contest id argument")
		}
		result, err := rewards.DistributeRewards(ctx, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("rewards distributed: contest=%s entries=%d created=%d existing=%d\n",
			result.ContestID, result.Entries, result.RewardsCreated, result.AlreadyRewarded)
		return nil

	case "expire":
		expired, err := rewards.ExpirePendingRewards(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("expired %d pending reward(s)\n", expired)
		return nil

	case "leaderboard":
		limit := 10
		if len(args) > 0 {
			parsed, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || parsed <= 0 {
				return fmt.Errorf("invalid leaderboard limit %q", args[0])
			}
			limit = parsed
		}
		entries, err := rewards.Leaderboard(ctx, limit)
		if err != nil {
			return err
		}
		for i, entry := range entries {
			fmt.Printf("%2d. user=%s points=%d\n", i+1, entry.UserID, entry.Points)
		}
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <start|end|distribute|expire|leaderboard> [args]\n", prog)
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s start\n", prog)
	fmt.Fprintf(os.Stderr, "  %s end\n", prog)
	fmt.Fprintf(os.Stderr, "  %s distribute contest_abc123\n", prog)
	fmt.Fprintf(os.Stderr, "  %s expire\n", prog)
	fmt.Fprintf(os.Stderr, "  %s leaderboard 25\n", prog)
}
