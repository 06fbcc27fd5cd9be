package user

import "time"

const (
	ChoiceA = "A"
	ChoiceB = "B"
)

// Selection is a participant's A/B pick for one image pair, keyed by (user_id, image_id).
type Selection struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false;column:user_id" json:"user_id"`
	ImageID   string    `gorm:"primaryKey;column:image_id;type:text" json:"image_id"`
	Selection string    `gorm:"column:selection;type:text;not null" json:"selection"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Selection) TableName() string { return "user_selections" }

func ValidChoice(v string) bool { return v == ChoiceA || v == ChoiceB }
