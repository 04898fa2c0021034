package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tjfontaine/polyglot-persona/internal/audit/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/persona-audit/main.go <audit.db> [session-id]")
		fmt.Println("Prints provider error counts, or the event trail of one session")
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	store, err := sqlite.New(args[0])
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	if len(args) > 1 {
		return printSession(ctx, store, args[1])
	}
	return printErrorCounts(ctx, store)
}

func printErrorCounts(ctx context.Context, store *sqlite.Store) error {
	counts, err := store.ProviderErrorCounts(ctx)
	if err != nil {
		return fmt.Errorf("count provider errors: %w", err)
	}
	if len(counts) == 0 {
		fmt.Println("No provider errors recorded")
		return nil
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s\n", name)
		for kind, n := range counts[name] {
			fmt.Printf("  %-14s %d\n", kind, n)
		}
	}
	return nil
}

func printSession(ctx context.Context, store *sqlite.Store, sessionID string) error {
	evs, err := store.ListEvents(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	for _, ev := range evs {
		fmt.Printf("%s  %-20s %v\n", ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Data)
	}

	gens, err := store.ListGenerations(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	if len(gens) > 0 {
		fmt.Println("\nGenerations:")
	}
	for _, g := range gens {
		fmt.Printf("  %-10s %-12s attempt=%d fallback=%t tokens=%d/%d latency=%s\n",
			g.Operation, g.Provider, g.Attempt, g.Fallback, g.InputTokens, g.OutputTokens, g.Latency)
	}
	return nil
}
