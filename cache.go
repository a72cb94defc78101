package sheetfeed

import (
	"fmt"
	"sync"
)

// Cache keeps the rows last loaded from an adapter. Rows are only ever
// replaced whole, so a failed mutation leaves the cached row untouched.
type Cache struct {
	mu     sync.RWMutex
	rows   []*Record
	schema *Schema
}

// NewCache creates a new Cache instance
func NewCache() *Cache {
	return &Cache{schema: &Schema{index: map[string]int{}}}
}

// Load replaces all data with the provided rows
func (c *Cache) Load(schema *Schema, rows []*Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schema = schema
	c.rows = make([]*Record, len(rows))
	for i, r := range rows {
		c.rows[i] = r.Clone()
	}
}

// Get retrieves a copy of the row at index i
func (c *Cache) Get(i int) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= len(c.rows) {
		return nil, fmt.Errorf("row %d out of range (have %d rows)", i, len(c.rows))
	}
	return c.rows[i].Clone(), nil
}

// Replace swaps in a row returned by the remote side
func (c *Cache) Replace(i int, row *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.rows) {
		return fmt.Errorf("row %d out of range (have %d rows)", i, len(c.rows))
	}
	c.rows[i] = row.Clone()
	return nil
}

// Append adds a row at the end and returns its index
func (c *Cache) Append(row *Record) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rows = append(c.rows, row.Clone())
	return len(c.rows) - 1
}

// All returns copies of every row in order
func (c *Cache) All() []*Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Record, len(c.rows))
	for i, r := range c.rows {
		out[i] = r.Clone()
	}
	return out
}

// Schema returns the schema the rows were loaded with
func (c *Cache) Schema() *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.schema
}

// Size returns the number of rows
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rows)
}
