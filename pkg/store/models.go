package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Associations exist for Preload only;
// no foreign key constraints are created.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;default:user"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Author        string `gorm:"not null"`
	ISBN          string `gorm:"column:isbn;uniqueIndex;not null"`
	PublishedDate *datatypes.Date
	Genre         string
	AddedByID     string     `gorm:"not null;index"`
	AddedBy       *UserModel `gorm:"foreignKey:AddedByID"`
	CreatedAt     time.Time  `gorm:"not null;index"`
	UpdatedAt     time.Time
}

type ReviewModel struct {
	ID        string     `gorm:"primaryKey"`
	BookID    string     `gorm:"not null;index"`
	UserID    string     `gorm:"not null;index"`
	User      *UserModel `gorm:"foreignKey:UserID"`
	Rating    int        `gorm:"not null"`
	Comment   string
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (UserModel) TableName() string   { return "users" }
func (BookModel) TableName() string   { return "books" }
func (ReviewModel) TableName() string { return "reviews" }
