package age

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/berdachuk/medexpertmatch/graph"
)

// DefaultGraphName is the AGE graph queried when none is configured.
const DefaultGraphName = "medexpertmatch_graph"

var (
	// ErrInvalidIdentifier is returned for labels, relationship types or
	// property keys that cannot be embedded in a statement safely.
	ErrInvalidIdentifier = errors.New("invalid graph identifier")

	// ErrNoReturn is returned for a read statement without RETURN aliases.
	ErrNoReturn = errors.New("statement has no RETURN aliases")
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	aliasPattern      = regexp.MustCompile(`(?i)\bAS\s+([A-Za-z_][A-Za-z0-9_]*)`)
	returnPattern     = regexp.MustCompile(`(?is)\bRETURN\b`)
	agtypeSuffix      = regexp.MustCompile(`::(vertex|edge|path)$`)
)

// querier is the subset of *pgxpool.Pool the client uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client runs Cypher through Apache AGE on PostgreSQL. It implements
// graph.Provider for reads and graph.Writer for building the graph.
type Client struct {
	db     querier
	pool   *pgxpool.Pool
	name   string
	logger *slog.Logger
}

var (
	_ graph.Provider = (*Client)(nil)
	_ graph.Writer   = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client) error

// WithGraphName selects the AGE graph.
func WithGraphName(name string) Option {
	return func(c *Client) error {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: graph name %q", ErrInvalidIdentifier, name)
		}
		c.name = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// Connect opens a pool whose connections load AGE on connect.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Client, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, `LOAD 'age'`); err != nil {
			return err
		}
		_, err := conn.Exec(ctx, `SET search_path = ag_catalog, "$user", public`)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c, err := newClient(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.pool = pool
	return c, nil
}

func newClient(db querier, opts ...Option) (*Client, error) {
	c := &Client{db: db, name: DefaultGraphName, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "graph-age", "graph", c.name)
	return c, nil
}

// Close closes the pool opened by Connect.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// GraphExists reports whether the graph is registered in ag_catalog.
func (c *Client) GraphExists(ctx context.Context) (bool, error) {
	var n int
	err := c.db.QueryRow(ctx, `SELECT count(*) FROM ag_catalog.ag_graph WHERE name = $1`, c.name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check graph: %w", err)
	}
	return n > 0, nil
}

// EnsureGraph creates the graph if it does not exist.
func (c *Client) EnsureGraph(ctx context.Context) error {
	ok, err := c.GraphExists(ctx)
	if err != nil || ok {
		return err
	}
	if _, err := c.db.Exec(ctx, `SELECT ag_catalog.create_graph($1)`, c.name); err != nil {
		return fmt.Errorf("failed to create graph: %w", err)
	}
	c.logger.Info("graph created")
	return nil
}

// Query runs a read statement. Each row maps the RETURN aliases to decoded
// agtype values.
func (c *Client) Query(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	aliases := returnAliases(statement)
	if len(aliases) == 0 {
		return nil, ErrNoReturn
	}
	sql, args, err := c.cypherSQL(statement, aliases, params)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("cypher query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		raw := make([]*string, len(aliases))
		dest := make([]any, len(aliases))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan cypher row: %w", err)
		}
		row := make(map[string]any, len(aliases))
		for i, alias := range aliases {
			if raw[i] == nil {
				row[alias] = nil
				continue
			}
			v, err := decodeAgtype(*raw[i])
			if err != nil {
				return nil, err
			}
			row[alias] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertNode merges a node by label and id and sets its properties.
func (c *Client) UpsertNode(ctx context.Context, label, id string, props map[string]any) error {
	if !identifierPattern.MatchString(label) {
		return fmt.Errorf("%w: label %q", ErrInvalidIdentifier, label)
	}
	params := map[string]any{"id": id}
	var sets []string
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !identifierPattern.MatchString(k) || k == "id" {
			return fmt.Errorf("%w: property %q", ErrInvalidIdentifier, k)
		}
		params["p_"+k] = props[k]
		sets = append(sets, fmt.Sprintf("n.%s = $p_%s", k, k))
	}
	stmt := fmt.Sprintf("MERGE (n:%s {id: $id})", label)
	if len(sets) > 0 {
		stmt += " SET " + strings.Join(sets, ", ")
	}
	return c.exec(ctx, stmt, params)
}

// UpsertEdge merges a relationship between two existing nodes.
func (c *Client) UpsertEdge(ctx context.Context, fromLabel, fromID, rel, toLabel, toID string) error {
	for _, ident := range []string{fromLabel, rel, toLabel} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	stmt := fmt.Sprintf("MATCH (a:%s {id: $from}), (b:%s {id: $to}) MERGE (a)-[:%s]->(b)", fromLabel, toLabel, rel)
	return c.exec(ctx, stmt, map[string]any{"from": fromID, "to": toID})
}

func (c *Client) exec(ctx context.Context, statement string, params map[string]any) error {
	sql, args, err := c.cypherSQL(statement, []string{"v"}, params)
	if err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("cypher exec: %w", err)
	}
	return nil
}

// cypherSQL wraps a Cypher statement in the AGE cypher() function. Columns
// are cast to text so they scan without a registered agtype codec.
func (c *Client) cypherSQL(statement string, aliases []string, params map[string]any) (string, []any, error) {
	if strings.Contains(statement, "$$") {
		return "", nil, fmt.Errorf("%w: statement contains $$", ErrInvalidIdentifier)
	}
	cols := make([]string, len(aliases))
	defs := make([]string, len(aliases))
	for i, a := range aliases {
		cols[i] = fmt.Sprintf("%q::text", a)
		defs[i] = fmt.Sprintf("%q agtype", a)
	}

	var args []any
	paramArg := ""
	if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return "", nil, fmt.Errorf("encode cypher params: %w", err)
		}
		args = append(args, string(encoded))
		paramArg = ", $1"
	}
	sql := fmt.Sprintf("SELECT %s FROM ag_catalog.cypher('%s', $$ %s $$%s) AS (%s)",
		strings.Join(cols, ", "), c.name, statement, paramArg, strings.Join(defs, ", "))
	return sql, args, nil
}

// returnAliases lists the AS aliases of the final RETURN clause.
func returnAliases(statement string) []string {
	locs := returnPattern.FindAllStringIndex(statement, -1)
	if len(locs) == 0 {
		return nil
	}
	tail := statement[locs[len(locs)-1][1]:]
	var aliases []string
	for _, m := range aliasPattern.FindAllStringSubmatch(tail, -1) {
		aliases = append(aliases, m[1])
	}
	return aliases
}

// decodeAgtype parses the text form of an agtype scalar, map or list.
// Vertex and edge annotations are dropped.
func decodeAgtype(text string) (any, error) {
	text = agtypeSuffix.ReplaceAllString(strings.TrimSpace(text), "")
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("decode agtype %q: %w", text, err)
	}
	return v, nil
}
