package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const usage = "up|down|status|version|to|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", "", "migrations directory (db commands default to the embedded set, create/validate to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	cfg, logg, err := bootstrap.Load("migrate")
	if err != nil {
		logg.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if err := run(ctx, cfg, logg, *cmd, *dir, *name, *target); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd, dir, name, target string) error {
	srcDir := dir
	if srcDir == "" {
		srcDir = migrate.DefaultDir
	}
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required for create")
		}
		path, err := migrate.Create(srcDir, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(srcDir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	m, err := migrate.New(sqlDB, client.Dialect(), dir)
	if err != nil {
		return err
	}

	var steps []migrate.Applied
	switch cmd {
	case "up":
		steps, err = m.Up(ctx)
	case "down":
		steps, err = m.Down(ctx)
	case "to":
		v, perr := strconv.ParseInt(target, 10, 64)
		if perr != nil {
			return fmt.Errorf("-version %q: want YYYYMMDDHHMMSS", target)
		}
		steps, err = m.To(ctx, v)
	case "version":
		v, verr := m.Version(ctx)
		if verr != nil {
			return verr
		}
		fmt.Println(v)
		return nil
	case "status":
		return printStatus(ctx, m)
	default:
		return fmt.Errorf("unknown -cmd %q (want %s)", cmd, usage)
	}
	if err != nil {
		return err
	}
	for _, s := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     s.Version,
			"direction":   s.Direction,
			"duration_ms": s.Duration.Milliseconds(),
		}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate done")
	return nil
}

func printStatus(ctx context.Context, m *migrate.Migrator) error {
	states, err := m.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tFILE")
	for _, s := range states {
		at := "pending"
		if s.Applied {
			at = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, at, s.Path)
	}
	return w.Flush()
}
