package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookshelf/pkg/domain"
)

// testStoreContract exercises behaviour every Store backend must share. The
// store passed in must be empty.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) }

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	// users
	alice := domain.User{ID: "u-alice", Email: "alice@example.com", PasswordHash: "h1", Role: domain.RoleAdmin, CreatedAt: at(0), UpdatedAt: at(0)}
	bob := domain.User{ID: "u-bob", Email: "bob@example.com", PasswordHash: "h2", Role: domain.RoleUser, CreatedAt: at(1), UpdatedAt: at(1)}
	for _, u := range []domain.User{alice, bob} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}
	if err := s.CreateUser(ctx, domain.User{ID: "u-dup", Email: alice.Email, Role: domain.RoleUser, CreatedAt: at(2)}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: expected ErrDuplicate, got %v", err)
	}
	got, ok, err := s.GetUserByEmail(ctx, alice.Email)
	if err != nil || !ok || got.ID != alice.ID || got.PasswordHash != "h1" || got.Role != domain.RoleAdmin {
		t.Fatalf("get by email: %+v ok=%v err=%v", got, ok, err)
	}
	if has, err := s.HasUserEmail(ctx, "nobody@example.com"); err != nil || has {
		t.Fatalf("has unknown email: %v %v", has, err)
	}
	bob.Email = alice.Email
	if err := s.UpdateUser(ctx, bob); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("update to taken email: expected ErrDuplicate, got %v", err)
	}
	bob.Email = "robert@example.com"
	bob.UpdatedAt = at(3)
	if err := s.UpdateUser(ctx, bob); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if err := s.UpdateUser(ctx, domain.User{ID: "u-missing", Email: "m@example.com", Role: domain.RoleUser}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing user: expected ErrNotFound, got %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0].ID != alice.ID || users[1].Email != "robert@example.com" {
		t.Fatalf("list users: %+v %v", users, err)
	}

	// books
	published := time.Date(1937, 9, 21, 0, 0, 0, 0, time.UTC)
	books := []domain.Book{
		{ID: "b-hobbit", Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", PublishedDate: &published, Genre: "fantasy", AddedByID: alice.ID, CreatedAt: at(10), UpdatedAt: at(10)},
		{ID: "b-dune", Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", AddedByID: alice.ID, CreatedAt: at(11), UpdatedAt: at(11)},
		{ID: "b-pct", Title: "100% Pure_Fiction", Author: "Anon", ISBN: "111", AddedByID: bob.ID, CreatedAt: at(12), UpdatedAt: at(12)},
	}
	for _, b := range books {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatalf("create book %s: %v", b.ID, err)
		}
	}
	if err := s.CreateBook(ctx, domain.Book{ID: "b-dup", Title: "x", Author: "y", ISBN: "111", AddedByID: alice.ID, CreatedAt: at(13)}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate isbn: expected ErrDuplicate, got %v", err)
	}

	hobbit, ok, err := s.GetBook(ctx, "b-hobbit")
	if err != nil || !ok {
		t.Fatalf("get book: ok=%v err=%v", ok, err)
	}
	if hobbit.AddedBy == nil || hobbit.AddedBy.Email != alice.Email {
		t.Fatalf("addedBy = %+v", hobbit.AddedBy)
	}
	if hobbit.PublishedDate == nil || hobbit.PublishedDate.Format(time.DateOnly) != "1937-09-21" {
		t.Fatalf("published date = %v", hobbit.PublishedDate)
	}
	if _, ok, err := s.GetBook(ctx, "b-missing"); err != nil || ok {
		t.Fatalf("get missing book: ok=%v err=%v", ok, err)
	}

	findTests := []struct {
		name string
		q    BookQuery
		want []string
	}{
		{name: "any field", q: BookQuery{Term: "HERB", Fields: []domain.BookField{domain.FieldTitle, domain.FieldAuthor, domain.FieldISBN}}, want: []string{"b-dune"}},
		{name: "title substring", q: BookQuery{Term: "hob", Fields: []domain.BookField{domain.FieldTitle}}, want: []string{"b-hobbit"}},
		{name: "percent is literal", q: BookQuery{Term: "0%", Fields: []domain.BookField{domain.FieldTitle}}, want: []string{"b-pct"}},
		{name: "underscore is literal", q: BookQuery{Term: "e_f", Fields: []domain.BookField{domain.FieldTitle}}, want: []string{"b-pct"}},
		{name: "regex chars are literal", q: BookQuery{Term: "J.R.R.", Fields: []domain.BookField{domain.FieldAuthor}}, want: []string{"b-hobbit"}},
		{name: "dot does not match any char", q: BookQuery{Term: "D.ne", Fields: []domain.BookField{domain.FieldTitle}}, want: nil},
		{name: "isbn exact", q: BookQuery{Term: "111", Fields: []domain.BookField{domain.FieldISBN}, Exact: true}, want: []string{"b-pct"}},
		{name: "isbn prefix is not exact", q: BookQuery{Term: "11", Fields: []domain.BookField{domain.FieldISBN}, Exact: true}, want: nil},
	}
	for _, tc := range findTests {
		t.Run(tc.name, func(t *testing.T) {
			found, err := s.FindBooks(ctx, tc.q)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(found) != len(tc.want) {
				t.Fatalf("got %d books want %d: %+v", len(found), len(tc.want), found)
			}
			for i, b := range found {
				if b.ID != tc.want[i] {
					t.Fatalf("result %d = %q want %q", i, b.ID, tc.want[i])
				}
			}
		})
	}

	listed, err := s.ListBooks(ctx)
	if err != nil || len(listed) != 3 || listed[0].ID != "b-hobbit" || listed[2].ID != "b-pct" {
		t.Fatalf("list books: %+v %v", listed, err)
	}

	hobbit.Genre = ""
	hobbit.PublishedDate = nil
	hobbit.Title = "The Hobbit, or There and Back Again"
	hobbit.UpdatedAt = at(20)
	if err := s.UpdateBook(ctx, hobbit); err != nil {
		t.Fatalf("update book: %v", err)
	}
	hobbit, _, _ = s.GetBook(ctx, "b-hobbit")
	if hobbit.Genre != "" || hobbit.PublishedDate != nil || hobbit.Title != "The Hobbit, or There and Back Again" {
		t.Fatalf("after update: %+v", hobbit)
	}
	hobbit.ISBN = "111"
	if err := s.UpdateBook(ctx, hobbit); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("update to taken isbn: expected ErrDuplicate, got %v", err)
	}
	if err := s.UpdateBook(ctx, domain.Book{ID: "b-missing", Title: "t", Author: "a", ISBN: "999"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing book: expected ErrNotFound, got %v", err)
	}

	// reviews
	review := domain.Review{ID: "r-1", BookID: "b-dune", UserID: bob.ID, Rating: 4, Comment: "spice", CreatedAt: at(30), UpdatedAt: at(30)}
	if err := s.CreateReview(ctx, review); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if err := s.CreateReview(ctx, domain.Review{ID: "r-2", BookID: "b-dune", UserID: alice.ID, Rating: 2, CreatedAt: at(31), UpdatedAt: at(31)}); err != nil {
		t.Fatalf("create second review: %v", err)
	}
	if _, ok, err := s.GetOwnedReview(ctx, "r-1", alice.ID); err != nil || ok {
		t.Fatalf("non-owner lookup: ok=%v err=%v", ok, err)
	}
	owned, ok, err := s.GetOwnedReview(ctx, "r-1", bob.ID)
	if err != nil || !ok || owned.Rating != 4 {
		t.Fatalf("owner lookup: %+v ok=%v err=%v", owned, ok, err)
	}
	owned.Rating = 5
	owned.UpdatedAt = at(32)
	if err := s.UpdateReview(ctx, owned); err != nil {
		t.Fatalf("update review: %v", err)
	}
	reviews, err := s.ListReviewsByBook(ctx, "b-dune")
	if err != nil || len(reviews) != 2 {
		t.Fatalf("list reviews: %+v %v", reviews, err)
	}
	if reviews[0].ID != "r-1" || reviews[0].Rating != 5 || reviews[0].User == nil || reviews[0].User.Email != "robert@example.com" {
		t.Fatalf("first review: %+v user=%+v", reviews[0], reviews[0].User)
	}
	if none, err := s.ListReviewsByBook(ctx, "b-missing"); err != nil || len(none) != 0 {
		t.Fatalf("reviews of missing book: %+v %v", none, err)
	}
	if deleted, err := s.DeleteOwnedReview(ctx, "r-1", alice.ID); err != nil || deleted {
		t.Fatalf("non-owner delete: %v %v", deleted, err)
	}
	if deleted, err := s.DeleteOwnedReview(ctx, "r-1", bob.ID); err != nil || !deleted {
		t.Fatalf("owner delete: %v %v", deleted, err)
	}

	// deletes do not cascade; dangling references render as nil
	if deleted, err := s.DeleteUser(ctx, bob.ID); err != nil || !deleted {
		t.Fatalf("delete user: %v %v", deleted, err)
	}
	if deleted, err := s.DeleteUser(ctx, bob.ID); err != nil || deleted {
		t.Fatalf("second delete user: %v %v", deleted, err)
	}
	pct, ok, err := s.GetBook(ctx, "b-pct")
	if err != nil || !ok || pct.AddedBy != nil || pct.AddedByID != bob.ID {
		t.Fatalf("book of deleted user: %+v ok=%v err=%v", pct, ok, err)
	}
	if deleted, err := s.DeleteBook(ctx, "b-dune"); err != nil || !deleted {
		t.Fatalf("delete book: %v %v", deleted, err)
	}
	if deleted, err := s.DeleteBook(ctx, "b-dune"); err != nil || deleted {
		t.Fatalf("second delete book: %v %v", deleted, err)
	}
	if left, err := s.ListReviewsByBook(ctx, "b-dune"); err != nil || len(left) != 1 {
		t.Fatalf("reviews after book delete: %+v %v", left, err)
	}
}
