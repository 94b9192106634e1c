package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserRef is the public projection of a user embedded in books and reviews.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Ref returns the public projection of u.
func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Email: u.Email}
}

type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	Genre         string     `json:"genre,omitempty"`
	AddedByID     string     `json:"addedById"`
	// AddedBy is filled on reads; nil when the creator no longer exists.
	AddedBy   *UserRef  `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Review struct {
	ID     string `json:"id"`
	BookID string `json:"bookId"`
	UserID string `json:"userId"`
	// User is filled on listing; nil when the author no longer exists.
	User      *UserRef  `json:"user"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// BookField names a searchable book attribute.
type BookField string

const (
	FieldTitle  BookField = "title"
	FieldAuthor BookField = "author"
	FieldISBN   BookField = "isbn"
)
