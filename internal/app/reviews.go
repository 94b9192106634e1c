package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookshelf/pkg/domain"
	"bookshelf/pkg/store"
)

type NewReview struct {
	BookID  string
	Rating  int
	Comment string
}

// ReviewUpdate carries the fields of an edit. Nil fields are left unchanged.
type ReviewUpdate struct {
	Rating  *int
	Comment *string
}

func validRating(r int) bool {
	return r >= domain.MinRating && r <= domain.MaxRating
}

// AddReview records caller's review of an existing book.
func (a *App) AddReview(ctx context.Context, caller domain.User, in NewReview) (domain.Review, error) {
	bookID := strings.TrimSpace(in.BookID)
	if bookID == "" || !validRating(in.Rating) {
		return domain.Review{}, ErrReviewFieldsRequired
	}

	ctx, cancel := a.bounded(ctx)
	defer cancel()
	if _, ok, err := a.store.GetBook(ctx, bookID); err != nil {
		return domain.Review{}, fmt.Errorf("fetch book: %w", err)
	} else if !ok {
		return domain.Review{}, ErrBookNotFound
	}

	now := a.now()
	review := domain.Review{
		ID:        a.newID(),
		BookID:    bookID,
		UserID:    caller.ID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	review.User = caller.Ref()
	return review, nil
}

// ListReviews returns the reviews of bookID; an unknown book yields an empty list.
func (a *App) ListReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	reviews, err := a.store.ListReviewsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// UpdateReview edits a review owned by caller. A review owned by someone else
// is reported as not found.
func (a *App) UpdateReview(ctx context.Context, caller domain.User, id string, upd ReviewUpdate) (domain.Review, error) {
	if upd.Rating != nil && !validRating(*upd.Rating) {
		return domain.Review{}, ErrInvalidRating
	}
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	review, ok, err := a.store.GetOwnedReview(ctx, id, caller.ID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrReviewNotFound
	}
	if upd.Rating != nil {
		review.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		review.Comment = *upd.Comment
	}
	review.UpdatedAt = a.now()

	switch err := a.store.UpdateReview(ctx, review); {
	case errors.Is(err, store.ErrNotFound):
		return domain.Review{}, ErrReviewNotFound
	case err != nil:
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	review.User = caller.Ref()
	return review, nil
}

// DeleteReview removes a review owned by caller.
func (a *App) DeleteReview(ctx context.Context, caller domain.User, id string) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	deleted, err := a.store.DeleteOwnedReview(ctx, id, caller.ID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if !deleted {
		return ErrReviewNotOwned
	}
	return nil
}
