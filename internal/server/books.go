package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bookmarket/internal/app"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/store"
)

var (
	errInvalidForm  = errors.New("invalid form data")
	errInvalidPrice = errors.New("invalid price")
)

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		claims, ok := s.requestClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.handleCreateBook(w, r, claims)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := bookFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.app.ListBooks(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	input, cover, err := s.parseBookForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	book, err := s.app.CreateBook(r.Context(), claims.UserID, input, cover)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.SearchBooks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	genres, err := s.app.ListGenres()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

func (s *Server) handleMyListings(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.MyListings(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// /api/books/{id}
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		claims, ok := s.requestClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.handleUpdateBook(w, r, claims, id)
	case http.MethodDelete:
		claims, ok := s.requestClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		actor := domain.User{ID: claims.UserID, Admin: claims.Admin}
		if err := s.app.DeleteBook(r.Context(), actor, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims, id string) {
	input, cover, err := s.parseBookForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := domain.User{ID: claims.UserID, Admin: claims.Admin}
	book, err := s.app.UpdateBook(r.Context(), actor, id, input, cover)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// parseBookForm reads the multipart listing form. The cover image is
// optional; its part must be named "image".
func (s *Server) parseBookForm(r *http.Request) (app.BookInput, *app.CoverUpload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return app.BookInput{}, nil, errInvalidForm
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("price")), 64)
	if err != nil {
		return app.BookInput{}, nil, errInvalidPrice
	}
	input := app.BookInput{
		Title:     r.FormValue("title"),
		Author:    r.FormValue("author"),
		Genre:     r.FormValue("genre"),
		Condition: domain.Condition(strings.TrimSpace(r.FormValue("condition"))),
		Price:     price,
	}
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return input, nil, nil
	}
	if err != nil {
		return app.BookInput{}, nil, errInvalidForm
	}
	cover := &app.CoverUpload{
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}
	return input, cover, nil
}

func bookFilterFromQuery(r *http.Request) (store.BookFilter, error) {
	q := r.URL.Query()
	filter := store.BookFilter{
		Title:     strings.TrimSpace(q.Get("title")),
		Author:    strings.TrimSpace(q.Get("author")),
		Genre:     strings.TrimSpace(q.Get("genre")),
		Condition: domain.Condition(strings.TrimSpace(q.Get("condition"))),
	}
	if raw := strings.TrimSpace(q.Get("minPrice")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return store.BookFilter{}, errInvalidPrice
		}
		filter.MinPrice = &v
	}
	if raw := strings.TrimSpace(q.Get("maxPrice")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return store.BookFilter{}, errInvalidPrice
		}
		filter.MaxPrice = &v
	}
	return filter, nil
}
