package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/backend"
	"equipment-inventory-console/internal/config"
	"equipment-inventory-console/internal/handlers"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/pkg/report"
)

func main() {
	var (
		eventID = flag.Int64("event", 0, "Inventory event ID")
		outDir  = flag.String("out", ".", "Directory the report is written to")
		token   = flag.String("token", os.Getenv("CONSOLE_TOKEN"), "Bearer token forwarded to the backend")
		baseURL = flag.String("backend", "", "Backend base URL (overrides BACKEND_URL env var)")
	)
	flag.Parse()

	if *eventID <= 0 {
		fmt.Println("Usage: export_audit --event=ID [--out=DIR] [--token=TOKEN] [--backend=URL]")
		os.Exit(1)
	}

	cfg := config.Load()
	if *baseURL != "" {
		cfg.BackendURL = *baseURL
	}

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Retries: cfg.BackendRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = auth.WithToken(ctx, *token)

	event, err := client.GetInventoryEvent(ctx, *eventID)
	if err != nil {
		log.Fatalf("Failed to load inventory event %d: %v", *eventID, err)
	}
	view, err := handlers.LoadView(ctx, client, event)
	if err != nil {
		log.Fatalf("Failed to load devices: %v", err)
	}

	ev := report.Event{View: view}
	if tree, err := client.ListLocations(ctx); err == nil {
		ev.LocationName = strings.Join(locations.NewIndex(tree).Path(event.LocationID), " / ")
	} else {
		log.Printf("Location names unavailable: %v", err)
	}

	path := filepath.Join(*outDir, report.Filename(ev))
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	if err := report.Write(f, ev); err != nil {
		f.Close()
		log.Fatalf("Failed to write report: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	fmt.Printf("Report written to %s\n", path)
	fmt.Printf("Found: %d, missing: %d, problems: %d, anomalies: %d\n",
		view.Tally.Found, view.Tally.Missing, view.Tally.Problems, len(view.Anomalies))
	for _, a := range view.Anomalies {
		fmt.Printf("  item %d (device %d): %s\n", a.ItemID, a.DeviceID, a.Kind)
	}
}
