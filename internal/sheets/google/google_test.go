package google

import (
	"context"
	"errors"
	"strings"
	"testing"

	"finanse/internal/core"
)

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "  "})
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected missing id error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "service account") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{AssetsSheet: "Assets"}
	o.setDefaults()
	if o.AssetsSheet != "Assets" || o.HistorySheet != "Historia" || o.MilestonesSheet != "Kamienie milowe" {
		t.Fatalf("defaults = %+v", o)
	}
}

func TestClientWithoutServiceFails(t *testing.T) {
	c := &Client{opts: Options{SpreadsheetID: "x"}, sheetIDs: map[string]int64{}}
	c.opts.setDefaults()
	if _, err := c.GetAssets(context.Background()); err == nil {
		t.Fatal("expected error without sheets service")
	}
	if _, err := c.GetAsset(context.Background(), "a1"); err == nil || errors.Is(err, core.ErrAssetNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
