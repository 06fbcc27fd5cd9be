package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/hci-study-backend/internal/domain"
)

func Ptr[T any](v T) *T { return &v }

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, occupation string) *types.User {
	tb.Helper()
	u := &types.User{
		AgeRange:    Ptr("25-34"),
		Occupation:  Ptr(occupation),
		TechComfort: Ptr(5),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedSelection(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64, imageID, choice string) *types.Selection {
	tb.Helper()
	s := &types.Selection{UserID: userID, ImageID: imageID, Selection: choice}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed selection: %v", err)
	}
	return s
}
