package model

import "gorm.io/gorm"

// User is a driver account. Password holds the bcrypt hash.
type User struct {
	gorm.Model
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`
	Email    string `json:"email"`
}
