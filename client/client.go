// Package client is the public façade (C10): the per-model proxy exposing
// the engine's CRUD operations, transaction scope management, and plugin/
// policy composition. It is the one package that wires every other
// component together — validate (C4), query (C5), mutate (C6), result
// (C7), plugin (C8), and policy (C9) — against a live connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/postgres"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/plugin"
	"github.com/polyquery/accessgraph/policy"
	"github.com/polyquery/accessgraph/privacy"
)

// config holds the configuration shared by a Client and every Client
// derived from it via Use/Intercept/SetAuth/WithFeatures/Debug.
type config struct {
	schema   *model.Schema
	cap      sql.Capability
	driver   dialect.Driver
	pipeline plugin.Pipeline
	viewer   privacy.Viewer
	debug    bool
	logger   *slog.Logger
}

func (c config) log(ctx context.Context, v ...any) {
	c.logger.InfoContext(ctx, fmt.Sprint(v...))
}

// Option configures a Client at construction time.
type Option func(*config)

// Driver sets the underlying driver connection.
func Driver(d dialect.Driver) Option { return func(c *config) { c.driver = d } }

// WithCapability sets the dialect capability implementation. Open infers
// this from the driver name; set it directly when constructing a Client
// from an already-open dialect.Driver via NewClient.
func WithCapability(cap sql.Capability) Option { return func(c *config) { c.cap = cap } }

// WithLogger sets the structured logger debug mode writes to.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithViewer sets the ambient caller identity auth()/auth().field
// expressions and the policy plugin resolve against.
func WithViewer(v privacy.Viewer) Option { return func(c *config) { c.viewer = v } }

// Client holds the schema, connection, and plugin pipeline shared by every
// model proxy obtained via Model. A Client is immutable once built: Use,
// Intercept, SetAuth, WithFeatures, and Debug all return a derived copy
// that shares the same driver handle rather than mutating the receiver, so
// a *Client already handed to callers never changes underneath them.
type Client struct {
	config
	// inTx is true for a transaction-scoped client returned by Transaction;
	// Transaction, Use, Intercept, and Disconnect refuse to run on it, per
	// the §6 restriction on the transaction-handle surface.
	inTx bool
	tx   *txState
}

// NewClient builds a Client around an already-configured driver/capability
// pair (see Driver/WithCapability). Prefer Open for the common case of
// connecting to a DSN.
func NewClient(schema *model.Schema, opts ...Option) *Client {
	cfg := config{schema: schema, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{config: cfg}
}

// Open opens a database connection for driverName ("sqlite" or "postgres")
// and returns a ready-to-use Client for schema.
func Open(driverName, dataSourceName string, schema *model.Schema, opts ...Option) (*Client, error) {
	drv, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("client: opening %s: %w", driverName, err)
	}
	var cap sql.Capability
	switch driverName {
	case dialect.SQLite:
		cap = sqlite.Capability{}
	case dialect.Postgres:
		cap = postgres.Capability{}
	default:
		return nil, fmt.Errorf("client: unsupported driver %q", driverName)
	}
	all := append([]Option{Driver(drv), WithCapability(cap)}, opts...)
	return NewClient(schema, all...), nil
}

// clone returns a shallow copy of c sharing the same driver handle; callers
// mutate fields on the copy, never on c.
func (c *Client) clone() *Client {
	cp := *c
	return &cp
}

// Use returns a Client with hooks added to the mutation hook chain,
// last-registered running outermost (see package plugin). Unavailable on a
// transaction handle.
func (c *Client) Use(hooks ...accessgraph.Hook) *Client {
	if c.inTx {
		panic("client: Use is not available on a transaction handle")
	}
	cp := c.clone()
	for _, h := range hooks {
		cp.pipeline = cp.pipeline.WithHook(h)
	}
	return cp
}

// Intercept returns a Client with interceptors added to the query
// interceptor chain, last-registered running outermost. Unavailable on a
// transaction handle.
func (c *Client) Intercept(interceptors ...accessgraph.Interceptor) *Client {
	if c.inTx {
		panic("client: Intercept is not available on a transaction handle")
	}
	cp := c.clone()
	for _, i := range interceptors {
		cp.pipeline = cp.pipeline.WithInterceptor(i)
	}
	return cp
}

// UnuseAll returns a Client with every installed hook, interceptor,
// onQuery/onKyselyQuery/onEntityMutation plugin, and client-installed
// policy removed. Schema-declared policies (model.ModelDef.Policies) are
// unaffected since they are recompiled per-call, not stored in Pipeline.
func (c *Client) UnuseAll() *Client {
	cp := c.clone()
	cp.pipeline = plugin.Pipeline{}
	return cp
}

// FeatureOptions configures WithFeatures.
type FeatureOptions struct {
	// Policy enables row-level policy enforcement using the viewer
	// resolved from context (see WithFeatures doc). Pass nil to leave
	// policy enforcement as-is.
	Policy *PolicyFeature
}

// PolicyFeature mirrors spec's `$withFeatures({policy})`: it wires the
// compiled @@allow/@@deny policy plugin into the pipeline.
type PolicyFeature struct {
	// Viewer resolves the ambient caller identity per-call from context;
	// when nil, the Client's own WithViewer-configured viewer is used for
	// every call instead of a per-request one.
	Viewer func(ctx context.Context) privacy.Viewer
}

// WithFeatures returns a Client with the named features enabled/reconfigured.
func (c *Client) WithFeatures(opts FeatureOptions) *Client {
	cp := c.clone()
	if opts.Policy != nil {
		viewer := opts.Policy.Viewer
		if viewer == nil {
			v := c.viewer
			viewer = func(context.Context) privacy.Viewer { return v }
		}
		cp.pipeline = cp.pipeline.WithPolicy(&policy.EvalQueryPolicy{
			Schema: c.schema,
			Cap:    c.cap,
			Viewer: viewer,
		})
	}
	return cp
}

// SetAuth returns a Client whose auth()/auth().field expressions and
// default-value generators (§4.4 step 4) resolve against v.
func (c *Client) SetAuth(v privacy.Viewer) *Client {
	cp := c.clone()
	cp.viewer = v
	return cp
}

// Debug returns a Client that logs every statement and its arguments via
// the configured *slog.Logger, wrapping the underlying *sql.Driver the way
// the teacher's Debug client does.
func (c *Client) Debug() *Client {
	if c.debug {
		return c
	}
	drv, ok := c.driver.(*sql.Driver)
	if !ok {
		return c
	}
	cp := c.clone()
	cp.debug = true
	cp.driver = sql.NewDebugDriver(drv, sql.DebugWithLog(cp.log))
	return cp
}

// Disconnect closes the underlying driver connection. Unavailable on a
// transaction handle.
func (c *Client) Disconnect() error {
	if c.inTx {
		panic("client: Disconnect is not available on a transaction handle")
	}
	if c.driver == nil {
		return nil
	}
	return c.driver.Close()
}

// QueryBuilder exposes the raw dialect.sql statement builder for the
// client's dialect ($qb): a caller can build and run a statement directly,
// bypassing the CRUD/validation layer. ExecRaw/QueryRaw hand the statement
// straight to the client's driver: no hook, interceptor or onKyselyQuery
// (plugin.AstPlugin) stage of the pipeline runs for it.
func (c *Client) QueryBuilder() *sql.DialectBuilder {
	return sql.Dialect(c.cap.Name())
}

// ExecRaw runs a raw statement built via QueryBuilder against the client's
// connection (transaction-scoped, if any).
func (c *Client) ExecRaw(ctx context.Context, q string, args []any) error {
	return c.driver.Exec(ctx, q, args, nil)
}

// QueryRaw runs a raw query built via QueryBuilder and decodes each row
// into a map keyed by column name.
func (c *Client) QueryRaw(ctx context.Context, q string, args []any) ([]M, error) {
	var rows sql.Rows
	if err := c.driver.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	return scanRows(&rows)
}

// ctxTxKey is the context key Transaction stashes the active
// transaction-scoped Client under, so nested $transaction calls reuse it.
type ctxTxKey struct{}

// txState accumulates onEntityMutation after-hooks deferred until commit
// (see plugin.TxState) for one transaction's lifetime.
type txState struct {
	deferred []func(context.Context) error
}

func (t *txState) InTransaction() bool { return true }
func (t *txState) OnCommit(fn func(context.Context) error) {
	t.deferred = append(t.deferred, fn)
}

// runDeferred runs every deferred after-mutation hook in registration
// order after a successful commit, collecting (not stopping on) errors.
func (t *txState) runDeferred(ctx context.Context) error {
	var errs []error
	for _, fn := range t.deferred {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Transaction runs fn against a transaction-scoped Client. A nested call
// (detected via context) reuses the outer transaction rather than starting
// a new one, per §5's "nested calls reuse the outer transaction" rule. If
// fn returns an error, the transaction is rolled back and after-mutation
// hooks registered during it are discarded; otherwise it commits and the
// deferred after-mutation hooks run against ctx.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Client) error) error {
	if existing, ok := ctx.Value(ctxTxKey{}).(*Client); ok {
		return fn(ctx, existing)
	}
	if c.inTx {
		return errors.New("client: cannot start a transaction within a transaction")
	}
	txDrv, err := c.driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("client: starting transaction: %w", err)
	}
	txClient := c.clone()
	txClient.driver = txDrv
	txClient.inTx = true
	txClient.tx = &txState{}
	ctx = context.WithValue(ctx, ctxTxKey{}, txClient)

	if err := fn(ctx, txClient); err != nil {
		if rerr := txDrv.Rollback(); rerr != nil {
			return fmt.Errorf("client: rolling back after %w: %v", err, rerr)
		}
		return err
	}
	if err := txDrv.Commit(); err != nil {
		return fmt.Errorf("client: committing transaction: %w", err)
	}
	return txClient.tx.runDeferred(ctx)
}

// txStateFor returns the TxState the plugin pipeline should use for the
// current call: the real, deferring one inside Transaction, or the
// run-immediately one outside any transaction.
func (c *Client) txStateFor() plugin.TxState {
	if c.inTx && c.tx != nil {
		return c.tx
	}
	return plugin.NewImmediateTxState()
}

// Model returns the proxy exposing CRUD operations for the named model.
func (c *Client) Model(name string) *ModelClient {
	return &ModelClient{name: name, c: c}
}
