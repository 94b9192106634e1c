package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookshelf/pkg/domain"
	"bookshelf/pkg/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	sessions, err := store.NewJWTSessionStore(strings.Repeat("k", 32), store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	a, err := New(Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func mustCreate(t *testing.T, a *App, email, role string) domain.User {
	t.Helper()
	u, err := a.CreateUser(context.Background(), NewUser{Email: email, Password: "pw-" + email, Role: role})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Config{Store: store.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without sessions")
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	user, token, err := a.Register(ctx, "  Reader@Example.com ", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "reader@example.com" || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Fatal("password must be stored hashed")
	}
	if _, _, err := a.Register(ctx, "reader@example.com", "other"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, _, err := a.Login(ctx, "reader@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.Login(ctx, "nobody@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	_, loginToken, err := a.Login(ctx, "READER@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := a.UserFromToken(ctx, token)
	if err != nil || got.ID != user.ID {
		t.Fatalf("user from token: %+v, %v", got, err)
	}
	if err := a.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := a.UserFromToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
	if _, err := a.UserFromToken(ctx, loginToken); err != nil {
		t.Fatalf("other session should survive logout: %v", err)
	}
}

func TestUserFromTokenForDeletedUser(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	user, token, err := a.Register(ctx, "gone@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := a.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := a.UserFromToken(ctx, token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateUserAddsExactlyOne(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	mustCreate(t, a, "first@example.com", "")

	before, _ := a.ListUsers(ctx)
	created := mustCreate(t, a, "second@example.com", "admin")
	after, _ := a.ListUsers(ctx)
	if len(after) != len(before)+1 {
		t.Fatalf("user count = %d, want %d", len(after), len(before)+1)
	}
	if created.Role != domain.RoleAdmin {
		t.Fatalf("role = %q, want admin", created.Role)
	}

	if _, err := a.CreateUser(ctx, NewUser{Email: "second@example.com", Password: "x"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if again, _ := a.ListUsers(ctx); len(again) != len(after) {
		t.Fatalf("duplicate create changed the store: %d users", len(again))
	}

	tests := []struct {
		name string
		in   NewUser
		want error
	}{
		{name: "missing email", in: NewUser{Password: "x"}, want: ErrEmailAndPasswordRequired},
		{name: "missing password", in: NewUser{Email: "p@example.com"}, want: ErrEmailAndPasswordRequired},
		{name: "bad role", in: NewUser{Email: "r@example.com", Password: "x", Role: "root"}, want: ErrInvalidRole},
		{name: "password too long", in: NewUser{Email: "l@example.com", Password: strings.Repeat("a", 80)}, want: ErrPasswordTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.CreateUser(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateUserPartial(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	u := mustCreate(t, a, "edit@example.com", "user")
	other := mustCreate(t, a, "taken@example.com", "user")

	updated, err := a.UpdateUser(ctx, u.ID, UserUpdate{Role: ptr("admin")})
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != domain.RoleAdmin || updated.Email != "edit@example.com" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := a.UpdateUser(ctx, u.ID, UserUpdate{Email: ptr(other.Email)}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists from store constraint, got %v", err)
	}
	if _, err := a.UpdateUser(ctx, u.ID, UserUpdate{Email: ptr(" ")}); !errors.Is(err, ErrEmailEmpty) {
		t.Fatalf("expected ErrEmailEmpty, got %v", err)
	}
	if _, err := a.UpdateUser(ctx, u.ID, UserUpdate{Role: ptr("")}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := a.UpdateUser(ctx, "missing", UserUpdate{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := a.DeleteUser(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on delete, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	admin, created, err := a.EnsureAdmin(ctx, "Root@Example.com", "pw")
	if err != nil || !created || admin.Role != domain.RoleAdmin {
		t.Fatalf("first ensure: %+v created=%v err=%v", admin, created, err)
	}
	again, created, err := a.EnsureAdmin(ctx, "root@example.com", "other")
	if err != nil || created || again.ID != admin.ID {
		t.Fatalf("second ensure: %+v created=%v err=%v", again, created, err)
	}
}

func TestEnsureAdminRejectsEmailHeldByUser(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	if _, _, err := a.Register(ctx, "root@example.com", "squatter"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, created, err := a.EnsureAdmin(ctx, "Root@Example.com", "pw"); !errors.Is(err, ErrAdminEmailTaken) || created {
		t.Fatalf("expected ErrAdminEmailTaken, got created=%v err=%v", created, err)
	}
	users, err := a.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Role != domain.RoleUser {
		t.Fatalf("existing account must be left alone: %+v", users)
	}
}

func TestLoginMissComparesDummyHash(t *testing.T) {
	a := newTestApp(t)
	user, _, err := a.Register(context.Background(), "reader@example.com", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	missCost, err := bcrypt.Cost([]byte(dummyHash()))
	if err != nil {
		t.Fatalf("dummy hash: %v", err)
	}
	userCost, err := bcrypt.Cost([]byte(user.PasswordHash))
	if err != nil {
		t.Fatalf("user hash: %v", err)
	}
	if missCost != userCost {
		t.Fatalf("dummy hash cost %d want %d", missCost, userCost)
	}
	if _, _, err := a.Login(context.Background(), "ghost@example.com", "bookshelf-login-miss"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must fail even with the dummy password, got %v", err)
	}
}

func TestBookLifecycle(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	admin := mustCreate(t, a, "admin@example.com", "admin")

	if _, err := a.AddBook(ctx, admin, NewBook{Title: "A", Author: "B"}); !errors.Is(err, ErrBookFieldsRequired) {
		t.Fatalf("expected ErrBookFieldsRequired, got %v", err)
	}
	if _, err := a.AddBook(ctx, admin, NewBook{Title: "A", Author: "B", ISBN: "1", PublishedDate: "yesterday"}); !errors.Is(err, ErrInvalidPublishedDate) {
		t.Fatalf("expected ErrInvalidPublishedDate, got %v", err)
	}

	book, err := a.AddBook(ctx, admin, NewBook{Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593", PublishedDate: "1965-08-01", Genre: "sf"})
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	got, err := a.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.Title != "Dune" || got.Author != "Frank Herbert" || got.ISBN != "978-0441013593" || got.Genre != "sf" {
		t.Fatalf("unexpected book: %+v", got)
	}
	if got.AddedBy == nil || got.AddedBy.Email != admin.Email {
		t.Fatalf("expected addedBy email %q, got %+v", admin.Email, got.AddedBy)
	}
	if got.PublishedDate == nil || !got.PublishedDate.Equal(time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date: %v", got.PublishedDate)
	}

	if _, err := a.AddBook(ctx, admin, NewBook{Title: "X", Author: "Y", ISBN: "978-0441013593"}); !errors.Is(err, ErrISBNExists) {
		t.Fatalf("expected ErrISBNExists, got %v", err)
	}

	updated, err := a.UpdateBook(ctx, book.ID, BookUpdate{Genre: ptr(""), PublishedDate: ptr("")})
	if err != nil {
		t.Fatalf("clear optional fields: %v", err)
	}
	if updated.Genre != "" || updated.PublishedDate != nil || updated.Title != "Dune" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if _, err := a.UpdateBook(ctx, book.ID, BookUpdate{Title: ptr("")}); !errors.Is(err, ErrBookFieldsEmpty) {
		t.Fatalf("expected ErrBookFieldsEmpty, got %v", err)
	}
	if _, err := a.UpdateBook(ctx, "missing", BookUpdate{}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}

	if err := a.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	if _, err := a.GetBook(ctx, book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound after delete, got %v", err)
	}
	if err := a.DeleteBook(ctx, book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound on second delete, got %v", err)
	}
}

func TestSearchBooks(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	admin := mustCreate(t, a, "admin@example.com", "admin")
	for _, b := range []NewBook{
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227"},
		{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"},
		{Title: "Hobbies of Herbs", Author: "Anon", ISBN: "111"},
	} {
		if _, err := a.AddBook(ctx, admin, b); err != nil {
			t.Fatalf("add %s: %v", b.Title, err)
		}
	}

	results, err := a.SearchBooks(ctx, "HERB")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, b := range results {
		hay := strings.ToLower(b.Title + "|" + b.Author + "|" + b.ISBN)
		if !strings.Contains(hay, "herb") {
			t.Fatalf("result %q does not contain the query", b.Title)
		}
	}

	if _, err := a.SearchBooks(ctx, "zzz"); !errors.Is(err, ErrNoBooksFound) {
		t.Fatalf("expected ErrNoBooksFound, got %v", err)
	}
	if _, err := a.SearchBooks(ctx, "  "); !errors.Is(err, ErrSearchQueryRequired) {
		t.Fatalf("expected ErrSearchQueryRequired, got %v", err)
	}
	if got, err := a.BooksByTitle(ctx, "hobb"); err != nil || len(got) != 2 {
		t.Fatalf("by title: %d, %v", len(got), err)
	}
	if _, err := a.BooksByAuthor(ctx, "nobody"); !errors.Is(err, ErrNoBooksWithAuthor) {
		t.Fatalf("expected ErrNoBooksWithAuthor, got %v", err)
	}
	if got, err := a.BooksByISBN(ctx, "111"); err != nil || len(got) != 1 {
		t.Fatalf("by isbn: %d, %v", len(got), err)
	}
	if _, err := a.BooksByISBN(ctx, "11"); !errors.Is(err, ErrNoBooksWithISBN) {
		t.Fatalf("isbn lookup must be exact, got %v", err)
	}
}

func TestReviewOwnership(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	admin := mustCreate(t, a, "admin@example.com", "admin")
	owner := mustCreate(t, a, "owner@example.com", "user")
	intruder := mustCreate(t, a, "intruder@example.com", "user")
	book, err := a.AddBook(ctx, admin, NewBook{Title: "T", Author: "A", ISBN: "1"})
	if err != nil {
		t.Fatalf("add book: %v", err)
	}

	if _, err := a.AddReview(ctx, owner, NewReview{BookID: "missing", Rating: 3}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
	if _, err := a.AddReview(ctx, owner, NewReview{BookID: book.ID, Rating: 6}); !errors.Is(err, ErrReviewFieldsRequired) {
		t.Fatalf("expected ErrReviewFieldsRequired, got %v", err)
	}
	review, err := a.AddReview(ctx, owner, NewReview{BookID: book.ID, Rating: 4, Comment: "good"})
	if err != nil {
		t.Fatalf("add review: %v", err)
	}

	if _, err := a.UpdateReview(ctx, intruder, review.ID, ReviewUpdate{Rating: ptr(1)}); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("non-owner update: expected ErrReviewNotFound, got %v", err)
	}
	if err := a.DeleteReview(ctx, intruder, review.ID); !errors.Is(err, ErrReviewNotOwned) {
		t.Fatalf("non-owner delete: expected ErrReviewNotOwned, got %v", err)
	}
	if _, err := a.UpdateReview(ctx, owner, review.ID, ReviewUpdate{Rating: ptr(0)}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}

	updated, err := a.UpdateReview(ctx, owner, review.ID, ReviewUpdate{Comment: ptr("")})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Rating != 4 || updated.Comment != "" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	reviews, err := a.ListReviews(ctx, book.ID)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("list reviews: %d, %v", len(reviews), err)
	}
	if reviews[0].User == nil || reviews[0].User.Email != owner.Email {
		t.Fatalf("expected reviewer email, got %+v", reviews[0].User)
	}
	if empty, err := a.ListReviews(ctx, "missing"); err != nil || len(empty) != 0 {
		t.Fatalf("unknown book should list empty, got %d, %v", len(empty), err)
	}

	if err := a.DeleteReview(ctx, owner, review.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}
