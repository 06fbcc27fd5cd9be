package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/yungbote/hci-study-backend/internal/data/repos"
	"github.com/yungbote/hci-study-backend/internal/data/repos/testutil"
	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/platform/apierr"
)

func newServices(t *testing.T) (UserService, SelectionService, repos.Repos) {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return NewUserService(db, log, r.User), NewSelectionService(db, log, r.User, r.Selection), r
}

func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apierr.Error, got %v", err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("got status=%d code=%s, want %d %s", ae.Status, ae.Code, status, code)
	}
}

func TestUserServiceCreateThenGetRoundTrips(t *testing.T) {
	users, _, _ := newServices(t)
	ctx := context.Background()

	created, err := users.Create(ctx, types.UserProfile{
		AgeRange:          testutil.Ptr("35-44"),
		EducationLevel:    testutil.Ptr("master"),
		SmartAssistantExp: testutil.Ptr("daily"),
		TechComfort:       testutil.Ptr(7),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := users.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.AgeRange != "35-44" || *got.EducationLevel != "master" || *got.SmartAssistantExp != "daily" || *got.TechComfort != 7 || got.Gender != nil {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserServiceNotFound(t *testing.T) {
	users, _, _ := newServices(t)
	ctx := context.Background()

	_, err := users.Get(ctx, 42)
	assertAPIError(t, err, http.StatusNotFound, "user_not_found")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound in chain")
	}
	_, err = users.Update(ctx, 42, types.UserProfile{})
	assertAPIError(t, err, http.StatusNotFound, "user_not_found")
}

func TestUserServiceRejectsTechComfortOutOfRange(t *testing.T) {
	users, _, _ := newServices(t)
	for _, v := range []int{0, 8, -1} {
		_, err := users.Create(context.Background(), types.UserProfile{TechComfort: testutil.Ptr(v)})
		assertAPIError(t, err, http.StatusBadRequest, "invalid_request")
	}
}

func TestSelectionServiceUpsert(t *testing.T) {
	users, selections, r := newServices(t)
	ctx := context.Background()
	u, err := users.Create(ctx, types.UserProfile{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := selections.Upsert(ctx, types.Selection{UserID: u.ID, ImageID: "img_1", Selection: "A"}); err != nil {
		t.Fatalf("Upsert A: %v", err)
	}
	if _, err := selections.Upsert(ctx, types.Selection{UserID: u.ID, ImageID: "img_1", Selection: "B"}); err != nil {
		t.Fatalf("Upsert B: %v", err)
	}

	rows, err := selections.ListForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(rows) != 1 || rows[0].Selection != "B" {
		t.Fatalf("expected single B row, got %+v", rows)
	}

	for _, bad := range []string{"C", "a", "", "AB"} {
		_, err := selections.Upsert(ctx, types.Selection{UserID: u.ID, ImageID: "img_1", Selection: bad})
		assertAPIError(t, err, http.StatusBadRequest, "invalid_selection")
	}
	rows, _ = r.Selection.ListByUser(ctx, nil, u.ID)
	if len(rows) != 1 || rows[0].Selection != "B" {
		t.Fatalf("invalid upsert modified rows: %+v", rows)
	}
}

func TestSelectionServiceUnknownUser(t *testing.T) {
	_, selections, _ := newServices(t)
	_, err := selections.Upsert(context.Background(), types.Selection{UserID: 99, ImageID: "img_1", Selection: "A"})
	assertAPIError(t, err, http.StatusNotFound, "user_not_found")
}
