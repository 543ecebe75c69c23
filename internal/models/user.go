package models

import "time"

type User struct {
	BaseModel
	Username          string     `gorm:"uniqueIndex;not null" json:"username"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	Role              UserRole   `gorm:"type:varchar(20);default:'user'" json:"role"`
	Status            UserStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	IsVerified        bool       `gorm:"default:false" json:"isVerified"`
	VerificationToken string     `json:"-"`
	VerificationExp   *time.Time `json:"-"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`

	// Relations
	Devices       []Device       `gorm:"foreignKey:UserID" json:"-"`
	Subscriptions []Subscription `gorm:"foreignKey:UserID" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
}

type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"not null;index" json:"userId"`
	Token     string    `gorm:"not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}
