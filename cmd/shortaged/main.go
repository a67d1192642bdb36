package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/opsdash/shortage/pkg/application/services"
	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/domain/repositories"
	"github.com/opsdash/shortage/pkg/infrastructure/backend/memory"
	"github.com/opsdash/shortage/pkg/infrastructure/backend/rest"
	"github.com/opsdash/shortage/pkg/infrastructure/events"
	"github.com/opsdash/shortage/pkg/interfaces/api"
)

func main() {
	var (
		addr = flag.String("addr", "", "Listen address (defaults to LISTEN_ADDR or :8090)")
		demo = flag.Bool("demo", false, "Run against a seeded in-memory backend instead of BACKEND_URL")
	)
	flag.Parse()

	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	log.SetOutput(os.Stdout)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = os.Getenv("LISTEN_ADDR")
	}
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	var backend repositories.ShortageBackend
	if *demo {
		backend = seededDemoBackend()
		log.Println("Running in demo mode against a seeded in-memory backend")
	} else {
		baseURL := os.Getenv("BACKEND_URL")
		if baseURL == "" {
			log.Fatal("BACKEND_URL must be set (or pass -demo)")
		}
		backend = rest.NewClient(baseURL, os.Getenv("BACKEND_TOKEN"))
		log.Printf("Using ERP backend at %s", baseURL)
	}

	auditLog := events.NewInMemoryEventStore()
	kpiTypes := []string{events.ReconciliationSubmittedEvent, events.ShortageResolvedEvent}
	if err := auditLog.Subscribe(kpiTypes, &sessionKPIs{}); err != nil {
		log.Fatalf("Failed to subscribe KPI counter: %v", err)
	}
	board := services.NewShortageBoard(backend, auditLog)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := board.Refresh(ctx); err != nil {
		// Non-fatal: the frontend can trigger a refresh once the backend
		// comes up.
		log.Printf("[WARN] Initial shortage fetch failed: %v", err)
	}

	router := api.NewRouter(api.NewHandler(board, auditLog))
	log.Printf("Starting shortage reconciliation service on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// sessionKPIs tails the audit stream and logs running reconciliation
// tallies for the session. Delivery is asynchronous, hence the mutex.
type sessionKPIs struct {
	mutex       sync.Mutex
	submissions int
	resolved    int
}

func (k *sessionKPIs) CanHandle(eventType string) bool {
	return eventType == events.ReconciliationSubmittedEvent || eventType == events.ShortageResolvedEvent
}

func (k *sessionKPIs) Handle(event events.Event) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	switch event.Type() {
	case events.ReconciliationSubmittedEvent:
		k.submissions++
	case events.ShortageResolvedEvent:
		k.resolved++
	}
	log.Printf("Session totals: %d reconciliations submitted, %d shortages resolved", k.submissions, k.resolved)
	return nil
}

// seededDemoBackend builds an in-memory backend with a small shortage set:
// flour and butter are each short in two recipes, sugar in one.
func seededDemoBackend() *memory.Backend {
	now := time.Now()
	rows := []struct {
		recordID   string
		itemID     string
		itemName   string
		recipeName string
		shortage   int64
		stock      int64
		price      string
	}{
		{"", "ITM-001", "Flour T55", "Baguette", 6, 14, "0.82"},
		{"", "ITM-001", "Flour T55", "Croissant", 4, 14, "0.82"},
		{"", "ITM-002", "Butter 82%", "Croissant", 9, 3, "7.40"},
		{"", "ITM-002", "Butter 82%", "Brioche", 3, 3, "7.40"},
		{"", "ITM-003", "Sugar", "Brioche", 5, 20, "1.15"},
	}

	backend := memory.NewBackend()
	records := make([]*entities.ShortageRecord, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.price)
		if err != nil {
			log.Fatalf("Invalid seed price %q: %v", row.price, err)
		}
		record, err := entities.NewShortageRecord(
			entities.RecordID(row.recordID),
			entities.ItemID(row.itemID),
			row.itemName,
			row.recipeName,
			entities.Quantity(row.shortage),
			entities.Quantity(row.stock),
			price,
			now,
		)
		if err != nil {
			log.Fatalf("Invalid seed record for %s: %v", row.itemName, err)
		}
		records = append(records, record)
	}
	backend.LoadShortages(records)
	return backend
}
