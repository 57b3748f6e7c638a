// Package txn runs multi-document drive mutations (folder cascades, subtree
// purges) inside a MongoDB transaction when the deployment supports one.
//
// On a standalone server transactions are unavailable; Run then executes the
// function directly. Every cascade step is a conditional update, so a
// non-transactional run can be re-driven by the caller without corrupting
// state.
//
//	err := txn.Run(ctx, db, log, func(ctx context.Context) error {
//	    _, err := folders.TrashUnder(ctx, uid, ids, root, at)
//	    return err
//	})
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func receives either a mongo.SessionContext (inside a transaction) or the
// caller's context (fallback). Use it for every database call.
type Func func(ctx context.Context) error

// Run executes fn in a transaction if possible, otherwise directly.
// log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		if log != nil {
			log.Warn("failed to start session, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions not supported, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (standalone mongod, DocumentDB without a
// replica set).
//
// Known codes: 20 (IllegalOperation on standalone), 51, 263.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Require two keyword hits to avoid treating ordinary failures as
	// "unsupported".
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
