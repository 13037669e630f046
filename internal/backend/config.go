package backend

import (
	"errors"
	"fmt"
	"strings"

	"finanse/internal/config"
)

var backendTypes = []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}

// TypeNames lists the accepted DATA_BACKEND values.
func TypeNames() []string {
	names := make([]string, len(backendTypes))
	for i, t := range backendTypes {
		names[i] = t.String()
	}
	return names
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := BackendType(cfg.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("unknown DATA_BACKEND %q (want %s)", cfg.DataBackend, strings.Join(TypeNames(), ", "))
	}

	bc := Config{
		Type:          t,
		SQLiteDBPath:  cfg.SQLiteDBPath,
		DataDirectory: cfg.DataDirectory,
		AMQPURL:       cfg.AMQPURL,
		AMQPExchange:  cfg.AMQPExchange,
		AMQPQueue:     cfg.AMQPQueue,
	}
	bc.Sheets = SheetsConfig{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		AssetsSheet:        cfg.GoogleAssetsSheet,
		HistorySheet:       cfg.GoogleHistorySheet,
		MilestonesSheet:    cfg.GoogleMilestonesSheet,
		ContributionsSheet: cfg.GoogleContributionsSheet,
		CategoriesSheet:    cfg.GoogleCategoriesSheet,
	}
	return bc, nil
}

// Validate checks that the selected backend has what it needs to open.
func (c Config) Validate() error {
	var missing string
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			missing = "SQLite database path"
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			missing = "Google Spreadsheet ID"
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("invalid backend type %q (want %s)", c.Type, strings.Join(TypeNames(), ", "))
	}
	if missing != "" {
		return fmt.Errorf("%s is required for the %s backend", missing, c.Type)
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
