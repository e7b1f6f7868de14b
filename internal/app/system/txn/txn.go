// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports one, and falls back to running them directly on
// standalone servers.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes meaning "transactions are unavailable here".
var notSupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation (standalone server)
	51:  true, // IllegalOperation on older servers
	263: true, // OperationNotSupportedInTransaction
}

var notSupportedKeywords = []string{
	"transaction",
	"replica set",
	"session",
	"not supported",
	"illegal operation",
}

// IsNotSupported reports whether err says the server cannot run a
// transaction. Besides known codes it accepts messages that mention at least
// two of the keywords above, since drivers and proxies word this differently.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range notSupportedKeywords {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}

type activeKey struct{}

// WithActive marks ctx as belonging to a running transaction.
func WithActive(ctx context.Context) context.Context {
	return context.WithValue(ctx, activeKey{}, true)
}

// Active reports whether ctx belongs to a running transaction. A failed write
// inside one aborts it on the server, so callers must not swallow the error.
func Active(ctx context.Context) bool {
	v, _ := ctx.Value(activeKey{}).(bool)
	return v
}

// Runner executes a unit of work transactionally.
type Runner struct {
	client *mongo.Client
	log    *zap.Logger
}

// NewRunner builds a Runner on client.
func NewRunner(client *mongo.Client, logger *zap.Logger) *Runner {
	return &Runner{client: client, log: logger}
}

// WithinTx runs fn inside a transaction. The context passed to fn carries the
// session, so store calls made with it join the transaction. If the server
// cannot run transactions, fn is run once more without one.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(WithActive(sc))
	})
	if err != nil && IsNotSupported(err) {
		r.log.Warn("transactions unsupported; running without one", zap.Error(err))
		return fn(ctx)
	}
	return err
}
