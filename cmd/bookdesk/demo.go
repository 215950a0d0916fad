package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/bookdesk/internal/fakeapi"
	"github.com/verte-zerg/bookdesk/internal/fixture"
)

var (
	demoAddr     string
	demoSeed     int64
	demoPassword string
	demoBooks    int
	demoSellers  int
	demoSales    int
	demoDays     int
	demoTokenTTL time.Duration
)

func newDemoServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "demo-server",
		Short:  "Serve an in-memory backend with generated data",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE:   runDemoServerCmd,
	}
	cmd.Flags().StringVar(&demoAddr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().Int64Var(&demoSeed, "seed", 0, "data seed (0: random)")
	cmd.Flags().StringVar(&demoPassword, "password", "demo", "password of every seller")
	cmd.Flags().IntVar(&demoBooks, "books", 40, "books to generate")
	cmd.Flags().IntVar(&demoSellers, "sellers", 4, "sellers to generate")
	cmd.Flags().IntVar(&demoSales, "sales", 300, "sales to generate")
	cmd.Flags().IntVar(&demoDays, "days", 45, "days of sales history")
	cmd.Flags().DurationVar(&demoTokenTTL, "token-ttl", time.Hour, "lifetime of issued tokens")
	return cmd
}

func runDemoServerCmd(cmd *cobra.Command, _ []string) error {
	if demoBooks < 1 || demoSellers < 1 || demoSales < 0 {
		return fmt.Errorf("--books and --sellers must be > 0 and --sales >= 0")
	}
	gen := fixture.NewRandom()
	if demoSeed != 0 {
		gen = fixture.New(demoSeed)
	}

	srv := fakeapi.New()
	srv.SetTokenTTL(demoTokenTTL)
	users, err := srv.Seed(gen, time.Now(), fakeapi.SeedOptions{
		Books:    demoBooks,
		Sellers:  demoSellers,
		Sales:    demoSales,
		Days:     demoDays,
		Password: demoPassword,
	})
	if err != nil {
		return err
	}

	logErrf("Serving demo backend on http://%s\n", demoAddr)
	for _, u := range users {
		logErrf("  %s  %s / %s\n", u.Name, u.Email, demoPassword)
	}
	logErrf("Point the client at it with --api-url http://%s\n", demoAddr)

	ctx := cmd.Context()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := srv.Shutdown(); err != nil {
				logErrf("failed to stop server: %v\n", err)
			}
		case <-done:
		}
	}()
	if err := srv.Listen(demoAddr); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
