package sheetfeed

import "context"

// Credentials is the OAuth2 material used to talk to the feed API.
// AccessToken is short-lived and may be empty or stale.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
}

// CredentialStore holds credentials between runs
type CredentialStore interface {
	Credentials() Credentials
	// Update stores changed token values; unchanged values leave the store clean.
	Update(Credentials)
	// Flush persists the store if anything changed since it was loaded.
	Flush() error
}

// OperationType represents the type of a user-initiated mutation
type OperationType int

const (
	OpUpdate OperationType = iota // replace one cell of an existing row
	OpAppend                      // add a new row
)

// Operation is a mutation request emitted by the view layer
type Operation struct {
	Type   OperationType
	Row    int    // index into the loaded rows, OpUpdate only
	Column string // column name or heading, OpUpdate only
	Value  string // new cell value, OpUpdate only
	Fields []Field
}

// Adapter is a row source that can also write rows back
type Adapter interface {
	// Load retrieves the column schema and every row matching query
	Load(ctx context.Context, query Query) (*Schema, []*Record, error)

	// Update sets one cell of row and returns the row as stored remotely
	Update(ctx context.Context, row *Record, column, value string) (*Record, error)

	// Append adds a new row and returns it as stored remotely
	Append(ctx context.Context, fields []Field) (*Record, error)
}

// Sink receives a header once followed by rows of the same arity
type Sink interface {
	WriteHeader(header []string) error
	WriteRow(row []string) error
	Close() error
}
