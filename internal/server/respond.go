package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"bookshelf/internal/app"
	"bookshelf/internal/util"
)

const (
	maxBodyBytes   = 1 << 20
	msgServerError = "Server error"
	msgInvalidJSON = "Invalid JSON body"
	msgBadPath     = "Invalid path parameter"

	msgInvalidToken = "Token is not valid"
	msgUserNotFound = "User not found"
)

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg, RequestID: util.RequestIDFromRequest(r)})
}

// decodeJSON reads at most maxBodyBytes of JSON into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

// errorStatus maps application errors to a status and the message shown to clients.
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{app.ErrEmailAndPasswordRequired, http.StatusBadRequest, "Please provide email and password"},
	{app.ErrEmailEmpty, http.StatusBadRequest, "Email cannot be empty"},
	{app.ErrPasswordTooLong, http.StatusBadRequest, "Password must be at most 72 bytes"},
	{app.ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
	{app.ErrUserExists, http.StatusBadRequest, "User already exists"},
	{app.ErrBookFieldsRequired, http.StatusBadRequest, "Please provide title, author, and ISBN"},
	{app.ErrBookFieldsEmpty, http.StatusBadRequest, "Title, author, and ISBN cannot be empty"},
	{app.ErrInvalidPublishedDate, http.StatusBadRequest, "Invalid publishedDate"},
	{app.ErrISBNExists, http.StatusBadRequest, "A book with this ISBN already exists"},
	{app.ErrSearchQueryRequired, http.StatusBadRequest, "Please provide a search query"},
	{app.ErrReviewFieldsRequired, http.StatusBadRequest, "Please provide bookId and a rating between 1 and 5"},
	{app.ErrInvalidRating, http.StatusBadRequest, "Rating must be between 1 and 5"},

	{app.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{app.ErrInvalidToken, http.StatusUnauthorized, msgInvalidToken},

	{app.ErrUserNotFound, http.StatusNotFound, msgUserNotFound},
	{app.ErrBookNotFound, http.StatusNotFound, "Book not found"},
	{app.ErrNoBooksFound, http.StatusNotFound, "No books found"},
	{app.ErrNoBooksWithTitle, http.StatusNotFound, "No books found with the given title"},
	{app.ErrNoBooksWithAuthor, http.StatusNotFound, "No books found with the given author"},
	{app.ErrNoBooksWithISBN, http.StatusNotFound, "No books found with the given ISBN"},
	{app.ErrReviewNotFound, http.StatusNotFound, "Review not found"},
	{app.ErrReviewNotOwned, http.StatusNotFound, "Review not found or you are not authorized to delete it"},
}

// statusForError maps application errors to a status and client message.
// Anything unrecognised is a 500 with a generic message.
func statusForError(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.msg
		}
	}
	return http.StatusInternalServerError, msgServerError
}

// pathParam returns the named route parameter, percent-decoded when chi routed
// on the escaped path. A bad escape answers 400.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw, true
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgBadPath)
		return "", false
	}
	return v, true
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		logServerError(r, "request failed", err)
	}
	writeError(w, r, status, msg)
}
