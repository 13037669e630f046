package backend

import (
	"context"

	"finanse/internal/amqp"
	"finanse/internal/sheets"
)

// Backend is a store implementing every port the services use.
type Backend interface {
	sheets.CategoryReader
	sheets.RecordSource
	sheets.RecordWriter
	sheets.AssetSource
	sheets.AssetReader
	sheets.AssetWriter
	sheets.MilestoneStore
	sheets.ContributionSource
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance, the optional merge queue
// and a cleanup function closing both.
type BackendResult struct {
	Backend   Backend
	Publisher *amqp.Client // nil when AMQP is not configured
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	Sheets SheetsConfig

	// Memory backend specific
	DataDirectory string

	// Merge queue, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// SheetsConfig names the spreadsheet and its tabs; empty tab names take
// the client defaults.
type SheetsConfig struct {
	SpreadsheetID      string
	AssetsSheet        string
	HistorySheet       string
	MilestonesSheet    string
	ContributionsSheet string
	CategoriesSheet    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
