package app

import "errors"

var (
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailEmpty               = errors.New("email empty")
	ErrPasswordTooLong          = errors.New("password too long")
	ErrInvalidRole              = errors.New("invalid role")
	ErrUserExists               = errors.New("user already exists")
	ErrUserNotFound             = errors.New("user not found")

	// ErrAdminEmailTaken means the bootstrap admin email belongs to a non-admin account.
	ErrAdminEmailTaken = errors.New("admin email belongs to a non-admin account")

	// ErrInvalidCredentials does not say which of email or password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	ErrBookFieldsRequired   = errors.New("title, author and isbn required")
	ErrBookFieldsEmpty      = errors.New("title, author and isbn must not be empty")
	ErrInvalidPublishedDate = errors.New("invalid published date")
	ErrISBNExists           = errors.New("isbn already exists")
	ErrBookNotFound         = errors.New("book not found")

	ErrSearchQueryRequired = errors.New("search query required")
	ErrNoBooksFound        = errors.New("no books found")
	ErrNoBooksWithTitle    = errors.New("no books with title")
	ErrNoBooksWithAuthor   = errors.New("no books with author")
	ErrNoBooksWithISBN     = errors.New("no books with isbn")

	ErrReviewFieldsRequired = errors.New("book id and rating required")
	ErrInvalidRating        = errors.New("rating out of range")
	ErrReviewNotFound       = errors.New("review not found")
	ErrReviewNotOwned       = errors.New("review not found or not owned")
)
