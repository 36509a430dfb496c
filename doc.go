// Package bazaar provides a composable product-registry and settlement
// engine for Go applications.
//
// Bazaar is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Creator-owned, access-gated products with multi-currency price lists
//   - Deterministic deployment and subscription settlement with fee splits
//   - Discount terms driven by a configurable discount currency
//   - Reentrancy-safe validate/transfer/mutate settlement ordering
//   - Pluggable storage (memory, PostgreSQL, SQLite, MongoDB)
//   - Lifecycle event hooks for external indexers via plugins
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/bazaar"
//	    "github.com/xraph/bazaar/store/postgres"
//	)
//
//	// Initialize store
//	store := postgres.New(db)
//
//	// Create engine
//	eng := bazaar.New(store,
//	    bazaar.WithLedger(myLedger),
//	    bazaar.WithAdmin(adminID),
//	)
//
//	// Start the engine (migrates, seeds config, inits plugins)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Configuration is a manager-gated singleton: deployment cost and currency,
// fee percentage and recipient, optional discount terms, and the
// approved-currency set:
//
//	eng.SetDeploymentConfig(ctx, manager, bazaar.USD(10000))
//	eng.SetFeeConfig(ctx, manager, 10, feeRecipient)
//	eng.ApproveCurrency(ctx, manager, "usd")
//
// Deploying registers a product and charges the deployment cost:
//
//	productID, err := eng.Deploy(ctx, creator, "Qm...hash", []product.Price{
//	    {Currency: "usd", Amount: bazaar.USD(5000)},
//	})
//
// Subscribing charges the product's price in the chosen currency, splits it
// between the fee recipient and the creator, and issues one access-token
// unit:
//
//	err := eng.Subscribe(ctx, subscriber, "usd", productID)
//
// # Settlement Model
//
// Every mutating entry point is one atomic unit of work ordered
// validate → transfer → mutate → emit. Ledger transfers are the only step
// that can run third-party code; a re-entry into any guarded entry point
// during an in-flight call fails with ErrReentrantCall, and a failure at any
// step leaves balances and registry state untouched.
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc). Fee splits use floor
// division on the fee side, so fee plus creator share always reconstructs
// the price exactly.
//
// # TypeID
//
// Identities and settlement records use TypeID for globally unique,
// type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41 // Identity
//	stl_01h455vb4pex5vsknk084sn02q  // Settlement record
//
// Product ids are deliberately not TypeIDs: the registry assigns them as
// monotonically increasing integers starting at 1, consumed only on
// successful deployment.
package bazaar
