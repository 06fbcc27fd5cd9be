package domain

import (
	"github.com/yungbote/hci-study-backend/internal/domain/user"
)

type (
	User        = user.User
	UserProfile = user.Profile
	Selection   = user.Selection
)

const (
	ChoiceA = user.ChoiceA
	ChoiceB = user.ChoiceB
)

func ValidChoice(v string) bool { return user.ValidChoice(v) }

// Models lists every table owned by the API, in migration order.
func Models() []any {
	return []any{&User{}, &Selection{}}
}
