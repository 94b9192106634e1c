package store

import (
	"context"
	"errors"

	"bookshelf/pkg/domain"
)

var (
	// ErrDuplicate is returned when a write violates a unique key
	// (user email or book isbn).
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrNotFound is returned by updates whose target row is gone.
	ErrNotFound = errors.New("store: not found")
)

// BookQuery selects books whose fields match Term. With Exact unset a field
// matches when it contains Term case-insensitively; a book matches when any
// listed field does.
type BookQuery struct {
	Term   string
	Fields []domain.BookField
	Exact  bool
}

// Store persists users, books and reviews. Reads of books and reviews fill the
// AddedBy and User references; a dangling reference is left nil.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	HasUserEmail(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)

	// books
	CreateBook(ctx context.Context, b domain.Book) error
	UpdateBook(ctx context.Context, b domain.Book) error
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
	FindBooks(ctx context.Context, q BookQuery) ([]domain.Book, error)
	DeleteBook(ctx context.Context, id string) (bool, error)

	// reviews, owner-scoped for mutation
	CreateReview(ctx context.Context, r domain.Review) error
	GetOwnedReview(ctx context.Context, id, userID string) (domain.Review, bool, error)
	ListReviewsByBook(ctx context.Context, bookID string) ([]domain.Review, error)
	UpdateReview(ctx context.Context, r domain.Review) error
	DeleteOwnedReview(ctx context.Context, id, userID string) (bool, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// SessionStore issues and resolves bearer tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}
