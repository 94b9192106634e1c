package store

import (
	"context"
	"strings"
	"sync"

	"bookshelf/pkg/domain"
)

// MemoryStore keeps everything in process memory. Listing order is insertion order.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]domain.User
	userOrder []string

	books     map[string]domain.Book
	bookOrder []string

	reviews     map[string]domain.Review
	reviewOrder []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		books:   make(map[string]domain.Book),
		reviews: make(map[string]domain.Review),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(u.Email, u.ID) {
		return ErrDuplicate
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	if s.emailTaken(u.Email, u.ID) {
		return ErrDuplicate
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.GetUserByEmail(ctx, email)
	return ok, err
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	s.userOrder = removeID(s.userOrder, id)
	return true, nil
}

func (s *MemoryStore) CreateBook(_ context.Context, b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; ok || s.isbnTaken(b.ISBN, b.ID) {
		return ErrDuplicate
	}
	b.AddedBy = nil
	s.books[b.ID] = b
	s.bookOrder = append(s.bookOrder, b.ID)
	return nil
}

func (s *MemoryStore) UpdateBook(_ context.Context, b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; !ok {
		return ErrNotFound
	}
	if s.isbnTaken(b.ISBN, b.ID) {
		return ErrDuplicate
	}
	b.AddedBy = nil
	s.books[b.ID] = b
	return nil
}

func (s *MemoryStore) isbnTaken(isbn, exceptID string) bool {
	for id, b := range s.books {
		if id != exceptID && b.ISBN == isbn {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetBook(_ context.Context, id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	return s.withAddedBy(b), true, nil
}

func (s *MemoryStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.FindBooks(ctx, BookQuery{})
}

// FindBooks with an empty Fields list returns every book.
func (s *MemoryStore) FindBooks(_ context.Context, q BookQuery) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Book, 0)
	for _, id := range s.bookOrder {
		b := s.books[id]
		if len(q.Fields) > 0 && !matchBook(b, q) {
			continue
		}
		out = append(out, s.withAddedBy(b))
	}
	return out, nil
}

func matchBook(b domain.Book, q BookQuery) bool {
	term := strings.ToLower(q.Term)
	for _, f := range q.Fields {
		var v string
		switch f {
		case domain.FieldTitle:
			v = b.Title
		case domain.FieldAuthor:
			v = b.Author
		case domain.FieldISBN:
			v = b.ISBN
		default:
			continue
		}
		if q.Exact {
			if v == q.Term {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) withAddedBy(b domain.Book) domain.Book {
	if u, ok := s.users[b.AddedByID]; ok {
		b.AddedBy = u.Ref()
	}
	return b
}

func (s *MemoryStore) DeleteBook(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return false, nil
	}
	delete(s.books, id)
	s.bookOrder = removeID(s.bookOrder, id)
	return true, nil
}

func (s *MemoryStore) CreateReview(_ context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; ok {
		return ErrDuplicate
	}
	r.User = nil
	s.reviews[r.ID] = r
	s.reviewOrder = append(s.reviewOrder, r.ID)
	return nil
}

func (s *MemoryStore) GetOwnedReview(_ context.Context, id, userID string) (domain.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok || r.UserID != userID {
		return domain.Review{}, false, nil
	}
	return r, true, nil
}

func (s *MemoryStore) ListReviewsByBook(_ context.Context, bookID string) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Review, 0)
	for _, id := range s.reviewOrder {
		r := s.reviews[id]
		if r.BookID != bookID {
			continue
		}
		if u, ok := s.users[r.UserID]; ok {
			r.User = u.Ref()
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) UpdateReview(_ context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; !ok {
		return ErrNotFound
	}
	r.User = nil
	s.reviews[r.ID] = r
	return nil
}

func (s *MemoryStore) DeleteOwnedReview(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(s.reviews, id)
	s.reviewOrder = removeID(s.reviewOrder, id)
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
