package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

type stubPurchaseReader struct {
	getByIDFn func(ctx context.Context, id int64) (*domain.AssessmentPurchase, error)
	calls     int
}

func (s *stubPurchaseReader) GetByID(ctx context.Context, id int64) (*domain.AssessmentPurchase, error) {
	s.calls++
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func newExportTestApp(t *testing.T, reader AssessmentPurchaseReader) (*fiber.App, map[string]string) {
	t.Helper()

	manager := newTestTokenManager(t)
	app := newTestApp()
	if err := RegisterExportRoutes(app, reader, RequireAuth(manager)); err != nil {
		t.Fatalf("RegisterExportRoutes() error = %v", err)
	}
	return app, bearer(t, manager)
}

func TestExportHandler_ServesPayloadVerbatim(t *testing.T) {
	t.Parallel()

	payload := `{"b":1,"a":[true,null]}`
	reader := &stubPurchaseReader{
		getByIDFn: func(ctx context.Context, id int64) (*domain.AssessmentPurchase, error) {
			if id != 42 {
				return nil, domain.ErrNotFound
			}
			return &domain.AssessmentPurchase{ID: 42, Name: "ACME-1", PurchaseDataJSON: payload}, nil
		},
	}
	app, headers := newExportTestApp(t, reader)

	resp, body := performRequestWithHeaders(t, app, http.MethodGet, "/assessment/purchase/export/42", "", headers)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if string(body) != payload {
		t.Fatalf("body = %s, want %s", string(body), payload)
	}
	if got := resp.Header.Get(fiber.HeaderContentType); got != fiber.MIMEApplicationJSON {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get(fiber.HeaderContentDisposition); got != "attachment; filename=assessment_purchase_ACME-1.json" {
		t.Fatalf("content disposition = %q", got)
	}
}

func TestExportHandler_NotFound(t *testing.T) {
	t.Parallel()

	reader := &stubPurchaseReader{}
	app, headers := newExportTestApp(t, reader)

	resp, _ := performRequestWithHeaders(t, app, http.MethodGet, "/assessment/purchase/export/7", "", headers)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown id", resp.StatusCode)
	}

	resp, _ = performRequestWithHeaders(t, app, http.MethodGet, "/assessment/purchase/export/abc", "", headers)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for non-numeric id", resp.StatusCode)
	}
	if reader.calls != 1 {
		t.Fatalf("reader calls = %d, want 1", reader.calls)
	}
}

func TestExportHandler_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	reader := &stubPurchaseReader{}
	app, _ := newExportTestApp(t, reader)

	tests := []struct {
		name    string
		headers map[string]string
		wantMsg string
	}{
		{name: "missing header", headers: nil, wantMsg: "missing authorization"},
		{name: "wrong scheme", headers: map[string]string{fiber.HeaderAuthorization: "Basic dXNlcjpwYXNz"}, wantMsg: "invalid authorization"},
		{name: "bad token", headers: map[string]string{fiber.HeaderAuthorization: "Bearer nope"}, wantMsg: "invalid token"},
	}

	for _, tt := range tests {
		resp, body := performRequestWithHeaders(t, app, http.MethodGet, "/assessment/purchase/export/42", "", tt.headers)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", tt.name, resp.StatusCode)
		}
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("%s: json unmarshal error = %v", tt.name, err)
		}
		if decoded["error"] != tt.wantMsg {
			t.Fatalf("%s: error = %v, want %s", tt.name, decoded["error"], tt.wantMsg)
		}
	}

	if reader.calls != 0 {
		t.Fatalf("reader calls = %d, want 0", reader.calls)
	}
}
