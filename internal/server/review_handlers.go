package server

import (
	"net/http"

	"bookshelf/internal/app"
	"bookshelf/pkg/domain"
)

type createReviewRequest struct {
	BookID  string `json:"bookId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type updateReviewRequest struct {
	Rating  optional[int]    `json:"rating"`
	Comment optional[string] `json:"comment"`
}

type reviewResponse struct {
	Message string        `json:"message"`
	Review  domain.Review `json:"review"`
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, _ := userFromContext(r.Context())
	review, err := s.app.AddReview(r.Context(), caller, app.NewReview{
		BookID:  req.BookID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewResponse{Message: "Review added successfully", Review: review})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathParam(w, r, "bookId")
	if !ok {
		return
	}
	reviews, err := s.app.ListReviews(r.Context(), bookID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "reviewId")
	if !ok {
		return
	}
	var req updateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, _ := userFromContext(r.Context())
	review, err := s.app.UpdateReview(r.Context(), caller, id, app.ReviewUpdate{
		Rating:  req.Rating.ptr(),
		Comment: req.Comment.ptr(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{Message: "Review updated successfully", Review: review})
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "reviewId")
	if !ok {
		return
	}
	caller, _ := userFromContext(r.Context())
	if err := s.app.DeleteReview(r.Context(), caller, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Review deleted successfully")
}
