package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"roomies/backend/internal/api/handler"
	"roomies/backend/internal/blocking"
	"roomies/backend/internal/config"
	"roomies/backend/internal/events"
	"roomies/backend/internal/matching"
	"roomies/backend/internal/report"
	"roomies/backend/internal/storage"

	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin [--config path] <command> [args]

Commands:
  deactivate <identity>          deactivate a profile and cancel its open matches
  block <blocker> <blocked>      create a block relation
  unblock <blocker> <blocked>    remove a block relation
  reports <identity>             show recent reports against an identity
  token <identity>               issue an access token
`

func main() {
	defaultPath, _ := config.PathFromEnv("config.toml")
	configPath := pflag.StringP("config", "c", defaultPath, "path to the TOML config file")
	timeout := pflag.Duration("timeout", 30*time.Second, "overall deadline for the command")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		pflag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	command := args[0]
	if command == "token" {
		requireArgs(args, 2)
		token, err := handler.NewAuthenticator(cfg.Auth).GenerateToken(args[1])
		if err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	store := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	pub := events.New(cfg.Kafka)
	defer pub.Close()
	blocks := blocking.NewRegistry(store, pub)
	profiles := matching.NewService(store, blocks, pub, cfg.Matching)

	switch command {
	case "deactivate":
		requireArgs(args, 2)
		if err := profiles.DeactivateProfile(ctx, args[1]); err != nil {
			log.Fatalf("error deactivating profile: %v", err)
		}
		fmt.Printf("Profile %s has been deactivated.\n", args[1])
	case "block":
		requireArgs(args, 3)
		rel, err := blocks.Create(ctx, args[1], args[2])
		if err != nil {
			log.Fatalf("error creating block: %v", err)
		}
		fmt.Printf("Block %s: %s -> %s\n", rel.ID, rel.BlockerID, rel.BlockedID)
	case "unblock":
		requireArgs(args, 3)
		if err := blocks.Remove(ctx, args[1], args[2]); err != nil {
			log.Fatalf("error removing block: %v", err)
		}
		fmt.Printf("Block %s -> %s removed.\n", args[1], args[2])
	case "reports":
		requireArgs(args, 2)
		svc := report.NewService(store, blocks, profiles, pub)
		list, err := svc.Reports(ctx, args[1])
		if err != nil {
			log.Fatalf("error listing reports: %v", err)
		}
		st, err := svc.StandingOf(ctx, args[1])
		if err != nil {
			log.Fatalf("error evaluating reports: %v", err)
		}
		for _, r := range list {
			fmt.Printf("%s  %-12s  %-12s  by %s  %s\n", r.CreatedAt.Format(time.RFC3339), r.Subject, r.Category, r.ReporterID, r.Reason)
		}
		fmt.Printf("%d reports from %d reporters, weight %d, suspend: %t\n", len(list), st.Reporters, st.Weight, st.Suspend)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		pflag.Usage()
		os.Exit(1)
	}
}

func requireArgs(args []string, n int) {
	if len(args) != n {
		pflag.Usage()
		os.Exit(1)
	}
}
