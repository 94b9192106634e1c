package server

import (
	"context"
	"net/http"

	"bookshelf/internal/app"
	"bookshelf/pkg/domain"
)

type createBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedDate string `json:"publishedDate"`
	Genre         string `json:"genre"`
}

type updateBookRequest struct {
	Title         optional[string] `json:"title"`
	Author        optional[string] `json:"author"`
	ISBN          optional[string] `json:"isbn"`
	PublishedDate optional[string] `json:"publishedDate"`
	Genre         optional[string] `json:"genre"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.ListBooks(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	book, err := s.app.GetBook(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, _ := userFromContext(r.Context())
	book, err := s.app.AddBook(r.Context(), caller, app.NewBook{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedDate: req.PublishedDate,
		Genre:         req.Genre,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req updateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.UpdateBook(r.Context(), id, app.BookUpdate{
		Title:         req.Title.ptr(),
		Author:        req.Author.ptr(),
		ISBN:          req.ISBN.ptr(),
		PublishedDate: req.PublishedDate.ptr(),
		Genre:         req.Genre.ptr(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteBook(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted successfully")
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	s.writeBooks(w, r, s.app.SearchBooks, r.URL.Query().Get("query"))
}

func (s *Server) handleBooksByTitle(w http.ResponseWriter, r *http.Request) {
	if title, ok := pathParam(w, r, "title"); ok {
		s.writeBooks(w, r, s.app.BooksByTitle, title)
	}
}

func (s *Server) handleBooksByAuthor(w http.ResponseWriter, r *http.Request) {
	if author, ok := pathParam(w, r, "author"); ok {
		s.writeBooks(w, r, s.app.BooksByAuthor, author)
	}
}

func (s *Server) handleBooksByISBN(w http.ResponseWriter, r *http.Request) {
	if isbn, ok := pathParam(w, r, "isbn"); ok {
		s.writeBooks(w, r, s.app.BooksByISBN, isbn)
	}
}

type bookFinder func(ctx context.Context, term string) ([]domain.Book, error)

func (s *Server) writeBooks(w http.ResponseWriter, r *http.Request, find bookFinder, term string) {
	books, err := find(r.Context(), term)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}
