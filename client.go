package sheetfeed

import (
	"context"
	"fmt"
	"sync"
)

// Client is a single-user session over one worksheet. It loads rows
// through an Adapter, applies mutations one at a time and persists
// refreshed credentials once, on Close.
type Client struct {
	config  Config
	cache   *Cache
	adaptor Adapter
	store   CredentialStore
	mu      sync.Mutex
	closed  bool
}

// New creates a new session client. store may be nil when the adapter
// needs no credentials.
func New(adapter Adapter, store CredentialStore, config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	return &Client{
		config:  *config,
		cache:   NewCache(),
		adaptor: adapter,
		store:   store,
	}
}

// Initialize loads the schema and rows from the adapter
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	schema, rows, err := c.adaptor.Load(ctx, c.config.Query)
	if err != nil {
		return fmt.Errorf("failed to load rows: %w", err)
	}
	c.cache.Load(schema, rows)
	return nil
}

// Schema returns the loaded column schema
func (c *Client) Schema() *Schema {
	return c.cache.Schema()
}

// Get retrieves a row by index
func (c *Client) Get(i int) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	return c.cache.Get(i)
}

// Rows returns every loaded row
func (c *Client) Rows() []*Record {
	return c.cache.All()
}

// Query filters the loaded rows locally
func (c *Client) Query(query Query) ([]*Record, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	return ApplyQuery(c.cache.All(), query), nil
}

// Apply performs one mutation against the remote side. The cached row is
// only replaced when the whole response decoded successfully.
func (c *Client) Apply(ctx context.Context, op Operation) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	switch op.Type {
	case OpUpdate:
		row, err := c.cache.Get(op.Row)
		if err != nil {
			return nil, err
		}
		name, ok := c.cache.Schema().Lookup(op.Column)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", op.Column)
		}
		updated, err := c.adaptor.Update(ctx, row, name, op.Value)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Replace(op.Row, updated); err != nil {
			return nil, err
		}
		return updated, nil

	case OpAppend:
		schema := c.cache.Schema()
		fields := make([]Field, 0, len(op.Fields))
		for _, f := range op.Fields {
			name, ok := schema.Lookup(f.Name)
			if !ok {
				return nil, fmt.Errorf("unknown column %q", f.Name)
			}
			fields = append(fields, Field{Name: name, Value: f.Value})
		}
		created, err := c.adaptor.Append(ctx, fields)
		if err != nil {
			return nil, err
		}
		c.cache.Append(created)
		return created, nil
	}

	return nil, fmt.Errorf("unknown operation type %d", op.Type)
}

// Export writes the schema headings and every loaded row to sink
func (c *Client) Export(sink Sink) error {
	schema := c.cache.Schema()
	if err := sink.WriteHeader(schema.Headings()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range c.cache.All() {
		if err := sink.WriteRow(row.Row(schema)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// Close closes the client and persists changed credentials
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.store == nil {
		return nil
	}
	if err := c.store.Flush(); err != nil {
		return fmt.Errorf("failed to persist credentials on close: %w", err)
	}
	return nil
}
