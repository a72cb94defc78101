package sheetfeed

// Config represents configuration for the session client
type Config struct {
	Query Query // rows selected by Load
}
