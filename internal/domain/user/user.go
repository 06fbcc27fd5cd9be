package user

import (
	"time"
)

// User is one study participant. Every demographic field is optional.
type User struct {
	ID                int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	AgeRange          *string   `gorm:"column:age_range" json:"age_range"`
	Gender            *string   `gorm:"column:gender" json:"gender"`
	EducationLevel    *string   `gorm:"column:education_level" json:"education_level"`
	Occupation        *string   `gorm:"column:occupation" json:"occupation"`
	SmartAssistantExp *string   `gorm:"column:smart_assistant_exp" json:"smart_assistant_exp"`
	TechComfort       *int      `gorm:"column:tech_comfort" json:"tech_comfort"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (User) TableName() string { return "users" }

// Profile is the writable part of a User, used for create and full replace.
type Profile struct {
	AgeRange          *string `json:"age_range"`
	Gender            *string `json:"gender"`
	EducationLevel    *string `json:"education_level"`
	Occupation        *string `json:"occupation"`
	SmartAssistantExp *string `json:"smart_assistant_exp"`
	TechComfort       *int    `json:"tech_comfort"`
}

func (p Profile) Apply(u *User) {
	u.AgeRange = p.AgeRange
	u.Gender = p.Gender
	u.EducationLevel = p.EducationLevel
	u.Occupation = p.Occupation
	u.SmartAssistantExp = p.SmartAssistantExp
	u.TechComfort = p.TechComfort
}
