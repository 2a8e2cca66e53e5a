// Package dialtone provides a prepaid calling and messaging wallet for Go applications.
//
// Dialtone is designed as a library, not a service. Import it directly into your
// Go application and wire it to your telephony provider. It provides:
//
//   - Self-service account registration with dialable number allocation
//   - One-time welcome credit granted exactly once per account
//   - Atomic prepaid balance accounting in micro-units
//   - Per-second prorated call settlement driven by carrier callbacks
//   - Flat-rate message charging with automatic refund on carrier failure
//   - Idempotent settlement keyed on carrier references
//   - Pluggable lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create a wallet instance with your preferred store:
//
//	import (
//	    "github.com/xraph/dialtone"
//	    "github.com/xraph/dialtone/store/postgres"
//	)
//
//	// Initialize store
//	store := postgres.New(db)
//
//	// Create wallet
//	w := dialtone.New(store,
//	    dialtone.WithProvider(carrier),
//	    dialtone.WithCallbackURL("https://example.com/call-status"),
//	)
//
//	// Start the wallet (runs migrations and background workers)
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Core Concepts
//
// Accounts are registered per caller identity and get a dialable number plus
// a one-time welcome credit:
//
//	acct, err := w.SetupAccount(ctx, "alice@example.com", nil)
//
// Calls are originated through the provider and settled later, when the
// carrier posts a status callback. Only completed calls are charged,
// prorated per second:
//
//	placed, err := w.PlaceCall(ctx, "alice@example.com", "+15550001234")
//	// later, from the carrier webhook:
//	err = w.HandleCallStatus(ctx, statusEvent)
//
// Messages are charged a flat rate up front and refunded in full if the
// carrier rejects the send:
//
//	sent, err := w.SendMessage(ctx, "alice@example.com", "+15550001234", "hi")
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in micro-units,
// millionths of the major unit, so that per-second call proration stays
// exact: 90 seconds at $0.05/min is 75000 micros, $0.075.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	call_01h2xcejqtf2nbrexx3vqjhp41  // Call ID
//	uevt_01h455vb4pex5vsknk084sn02q  // Usage event ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package dialtone
