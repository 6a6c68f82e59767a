package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendbot/internal/core"
	ports "spendbot/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/nonexistent/sa.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_AppendRowsWithoutService(t *testing.T) {
	c := NewWithService(nil, "sheet", "", nil)
	if _, err := c.AppendRows(context.Background(), []ports.Row{{Category: "x"}}); err == nil {
		t.Fatal("expected error for nil service")
	}
	if ref, err := c.AppendRows(context.Background(), nil); err != nil || ref != "" {
		t.Fatalf("empty append should be a no-op: ref=%q err=%v", ref, err)
	}
}

func TestClient_AppendRows(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Expenses!A2:E3","updatedRows":2}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	c := NewWithService(svc, "sheet-1", "Expenses", nil)

	ref, err := c.AppendRows(context.Background(), []ports.Row{
		{Date: "14.03.2025", Time: "12:30", UserID: 7, Category: "food", Amount: core.Money{Cents: 1050}},
		{Date: "14.03.2025", Time: "12:31", UserID: 7, Category: "taxi", Amount: core.Money{Cents: 700}},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Expenses!A2:E3" {
		t.Fatalf("unexpected range %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-1/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Values) != 2 || gotBody.Values[0][3] != "food" || gotBody.Values[1][4] != 7.0 {
		t.Fatalf("unexpected body: %+v", gotBody.Values)
	}
}

func TestClient_AppendRowsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = NewWithService(svc, "sheet-1", "Expenses", nil).AppendRows(context.Background(), []ports.Row{{Category: "x"}})
	if err == nil || !strings.Contains(err.Error(), "append rows to sheet Expenses") {
		t.Fatalf("unexpected error: %v", err)
	}
}
