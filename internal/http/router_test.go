package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hci-study-backend/internal/data/repos"
	"github.com/yungbote/hci-study-backend/internal/data/repos/testutil"
	apphttp "github.com/yungbote/hci-study-backend/internal/http"
	httpH "github.com/yungbote/hci-study-backend/internal/http/handlers"
	"github.com/yungbote/hci-study-backend/internal/observability"
	"github.com/yungbote/hci-study-backend/internal/services"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newRouter(t *testing.T, ping pingerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	userSvc := services.NewUserService(db, log, r.User)
	selSvc := services.NewSelectionService(db, log, r.User, r.Selection)
	var pinger httpH.Pinger
	if ping != nil {
		pinger = ping
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:              log,
		Metrics:          observability.NewMetrics(),
		HealthHandler:    httpH.NewHealthHandler(pinger),
		UserHandler:      httpH.NewUserHandler(userSvc, selSvc),
		SelectionHandler: httpH.NewSelectionHandler(selSvc),
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type userJSON struct {
	ID                int64   `json:"id"`
	AgeRange          *string `json:"age_range"`
	Gender            *string `json:"gender"`
	EducationLevel    *string `json:"education_level"`
	Occupation        *string `json:"occupation"`
	SmartAssistantExp *string `json:"smart_assistant_exp"`
	TechComfort       *int    `json:"tech_comfort"`
}

type errorJSON struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	r := newRouter(t, func(context.Context) error { return nil })
	rec := do(t, r, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	down := newRouter(t, func(context.Context) error { return errors.New("db down") })
	rec = do(t, down, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != `{"ok":false}` {
		t.Fatalf("health down: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUserLifecycle(t *testing.T) {
	r := newRouter(t, nil)

	rec := do(t, r, http.MethodPost, "/api/users", map[string]any{
		"age_range": "25-34", "gender": "female", "tech_comfort": 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[userJSON](t, rec)
	if created.ID == 0 || *created.AgeRange != "25-34" || created.Occupation != nil {
		t.Fatalf("create: unexpected body %s", rec.Body.String())
	}

	path := "/api/users/" + strconv.FormatInt(created.ID, 10)
	rec = do(t, r, http.MethodGet, path, nil)
	got := decode[userJSON](t, rec)
	if rec.Code != http.StatusOK || got.ID != created.ID || *got.Gender != "female" || *got.TechComfort != 4 {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPut, path, map[string]any{"occupation": "engineer"})
	updated := decode[userJSON](t, rec)
	if rec.Code != http.StatusOK || updated.Gender != nil || *updated.Occupation != "engineer" {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/api/users", nil)
	list := decode[[]userJSON](t, rec)
	if rec.Code != http.StatusOK || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUserErrors(t *testing.T) {
	r := newRouter(t, nil)

	cases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"get missing", http.MethodGet, "/api/users/999", nil, http.StatusNotFound, "user_not_found"},
		{"update missing", http.MethodPut, "/api/users/999", map[string]any{}, http.StatusNotFound, "user_not_found"},
		{"non numeric id", http.MethodGet, "/api/users/abc", nil, http.StatusBadRequest, "invalid_request"},
		{"malformed body", http.MethodPost, "/api/users", "{not json", http.StatusBadRequest, "invalid_request"},
		{"tech comfort range", http.MethodPost, "/api/users", map[string]any{"tech_comfort": 9}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if got := decode[errorJSON](t, rec); got.Error.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", got.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestSelections(t *testing.T) {
	r := newRouter(t, nil)
	created := decode[userJSON](t, do(t, r, http.MethodPost, "/api/users", map[string]any{}))

	for _, choice := range []string{"A", "B"} {
		rec := do(t, r, http.MethodPut, "/api/selections", map[string]any{
			"user_id": created.ID, "image_id": "img_12", "selection": choice,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("upsert %s: %d %s", choice, rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["selection"] != choice || body["image_id"] != "img_12" {
			t.Fatalf("upsert %s: body %s", choice, rec.Body.String())
		}
	}

	rec := do(t, r, http.MethodPut, "/api/selections", map[string]any{
		"user_id": created.ID, "image_id": "img_12", "selection": "C",
	})
	if rec.Code != http.StatusBadRequest || decode[errorJSON](t, rec).Error.Code != "invalid_selection" {
		t.Fatalf("invalid selection: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPut, "/api/selections", map[string]any{
		"user_id": created.ID + 100, "image_id": "img_12", "selection": "A",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: %d %s", rec.Code, rec.Body.String())
	}

	path := "/api/users/" + strconv.FormatInt(created.ID, 10) + "/selections"
	rec = do(t, r, http.MethodGet, path, nil)
	rows := decode[[]map[string]any](t, rec)
	if rec.Code != http.StatusOK || len(rows) != 1 || rows[0]["selection"] != "B" {
		t.Fatalf("list selections: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t, nil)
	do(t, r, http.MethodGet, "/api/users", nil)
	rec := do(t, r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`route="/api/users"`)) {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}
