// Package models contains data structures for the application's domain models.
package models

import "time"

// User is a registered account. Email is unique and stored lowercased.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot copies the fields denormalized into articles, comments and likes.
func (u *User) Snapshot() AuthorSnapshot {
	return AuthorSnapshot{UserID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// AuthorSnapshot is the {id, name, avatar} triple copied at write time.
// It is never refreshed when the user later edits their profile.
type AuthorSnapshot struct {
	UserID uint   `gorm:"column:id;not null" json:"id"`
	Name   string `gorm:"column:name;size:100" json:"name"`
	Avatar string `gorm:"column:avatar" json:"avatar"`
}
