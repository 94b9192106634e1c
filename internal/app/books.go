package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookshelf/pkg/domain"
	"bookshelf/pkg/store"
)

// NewBook is the input for adding a book. PublishedDate is YYYY-MM-DD or RFC 3339.
type NewBook struct {
	Title         string
	Author        string
	ISBN          string
	PublishedDate string
	Genre         string
}

// BookUpdate carries the fields of an edit. Nil fields are left unchanged;
// an empty PublishedDate or Genre clears it.
type BookUpdate struct {
	Title         *string
	Author        *string
	ISBN          *string
	PublishedDate *string
	Genre         *string
}

var allBookFields = []domain.BookField{domain.FieldTitle, domain.FieldAuthor, domain.FieldISBN}

func (a *App) ListBooks(ctx context.Context) ([]domain.Book, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	books, err := a.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (a *App) GetBook(ctx context.Context, id string) (domain.Book, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// AddBook stores a book created by caller.
func (a *App) AddBook(ctx context.Context, caller domain.User, in NewBook) (domain.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	isbn := strings.TrimSpace(in.ISBN)
	if title == "" || author == "" || isbn == "" {
		return domain.Book{}, ErrBookFieldsRequired
	}
	published, err := parsePublishedDate(in.PublishedDate)
	if err != nil {
		return domain.Book{}, err
	}

	now := a.now()
	book := domain.Book{
		ID:            a.newID(),
		Title:         title,
		Author:        author,
		ISBN:          isbn,
		PublishedDate: published,
		Genre:         strings.TrimSpace(in.Genre),
		AddedByID:     caller.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	if err := a.store.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Book{}, ErrISBNExists
		}
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	book.AddedBy = caller.Ref()
	return book, nil
}

func (a *App) UpdateBook(ctx context.Context, id string, upd BookUpdate) (domain.Book, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}

	for _, f := range []struct {
		in  *string
		dst *string
	}{
		{upd.Title, &book.Title},
		{upd.Author, &book.Author},
		{upd.ISBN, &book.ISBN},
	} {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return domain.Book{}, ErrBookFieldsEmpty
		}
		*f.dst = v
	}
	if upd.Genre != nil {
		book.Genre = strings.TrimSpace(*upd.Genre)
	}
	if upd.PublishedDate != nil {
		published, err := parsePublishedDate(*upd.PublishedDate)
		if err != nil {
			return domain.Book{}, err
		}
		book.PublishedDate = published
	}
	book.UpdatedAt = a.now()

	switch err := a.store.UpdateBook(ctx, book); {
	case errors.Is(err, store.ErrDuplicate):
		return domain.Book{}, ErrISBNExists
	case errors.Is(err, store.ErrNotFound):
		return domain.Book{}, ErrBookNotFound
	case err != nil:
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book. Its reviews are kept.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	deleted, err := a.store.DeleteBook(ctx, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if !deleted {
		return ErrBookNotFound
	}
	return nil
}

// SearchBooks matches query against title, author and isbn, case-insensitively.
// Zero matches is ErrNoBooksFound.
func (a *App) SearchBooks(ctx context.Context, query string) ([]domain.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrSearchQueryRequired
	}
	return a.findBooks(ctx, store.BookQuery{Term: query, Fields: allBookFields}, ErrNoBooksFound)
}

func (a *App) BooksByTitle(ctx context.Context, title string) ([]domain.Book, error) {
	return a.findBooks(ctx, store.BookQuery{Term: title, Fields: []domain.BookField{domain.FieldTitle}}, ErrNoBooksWithTitle)
}

func (a *App) BooksByAuthor(ctx context.Context, author string) ([]domain.Book, error) {
	return a.findBooks(ctx, store.BookQuery{Term: author, Fields: []domain.BookField{domain.FieldAuthor}}, ErrNoBooksWithAuthor)
}

// BooksByISBN matches the isbn exactly.
func (a *App) BooksByISBN(ctx context.Context, isbn string) ([]domain.Book, error) {
	return a.findBooks(ctx, store.BookQuery{Term: strings.TrimSpace(isbn), Fields: []domain.BookField{domain.FieldISBN}, Exact: true}, ErrNoBooksWithISBN)
}

func (a *App) findBooks(ctx context.Context, q store.BookQuery, none error) ([]domain.Book, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	books, err := a.store.FindBooks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	if len(books) == 0 {
		return nil, none
	}
	return books, nil
}

func parsePublishedDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidPublishedDate
}
