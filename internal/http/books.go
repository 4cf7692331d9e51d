package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vieux-grimoire/books-api/internal/auth"
	"github.com/vieux-grimoire/books-api/internal/domain"
	"github.com/vieux-grimoire/books-api/internal/images"
	"github.com/vieux-grimoire/books-api/internal/repository"
)

const bestRatingLimit = 3

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// bookPayload is the client-supplied portion of a book, sent either as the
// "book" multipart field or as a plain JSON body. Server-controlled fields
// (id, owner, averageRating) have no place here and are silently dropped by
// the decoder.
type bookPayload struct {
	Title   *string         `json:"title"`
	Author  *string         `json:"author"`
	Genre   *string         `json:"genre"`
	Year    *int            `json:"year"`
	Ratings []ratingPayload `json:"ratings"`
}

type ratingPayload struct {
	UserID string `json:"userId"`
	Grade  int    `json:"grade"`
}

type ratingRequest struct {
	UserID string `json:"userId"`
	Rating int    `json:"rating"`
}

type bookResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Year          int             `json:"year"`
	Genre         string          `json:"genre"`
	ImageURL      string          `json:"imageUrl"`
	Ratings       []ratingPayload `json:"ratings"`
	AverageRating float64         `json:"averageRating"`
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing authenticated identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	payload, err := parseBookPayload([]byte(r.FormValue("book")))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed book payload")
		return
	}
	if err := validateRequiredFields(payload); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	filename, err := s.pipeline.Process(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedType) {
			s.respondError(w, http.StatusBadRequest, "unsupported image type")
			return
		}
		s.logger.Printf("image pipeline error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	// An optional seed rating: only the grade is taken, the submitter is
	// always the authenticated caller.
	var ratings []domain.Rating
	if len(payload.Ratings) > 0 {
		grade := payload.Ratings[0].Grade
		if err := domain.ValidateGrade(grade); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		ratings = []domain.Rating{{UserID: userID, Grade: grade}}
	}

	_, err = s.repo.Books.Create(r.Context(), repository.BookCreateParams{
		OwnerID:       userID,
		Title:         strings.TrimSpace(*payload.Title),
		Author:        strings.TrimSpace(*payload.Author),
		Genre:         strings.TrimSpace(*payload.Genre),
		Year:          *payload.Year,
		ImageURL:      s.imageURL(r, filename),
		Ratings:       ratings,
		AverageRating: domain.AverageGrade(ratings),
	})
	if err != nil {
		s.logger.Printf("create book error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	s.respondJSON(w, http.StatusCreated, messageResponse{Message: "Book created"})
}

func (s *Server) handleModifyBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing authenticated identity")
		return
	}
	id := chi.URLParam(r, "id")

	book, err := s.repo.Books.GetByID(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err, "fetch book for update")
		return
	}
	if book.OwnerID != userID {
		s.respondError(w, http.StatusUnauthorized, "not authorized")
		return
	}

	var (
		payload  bookPayload
		imageURL *string
	)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			s.respondError(w, http.StatusBadRequest, "malformed multipart form")
			return
		}
		payload, err = parseBookPayload([]byte(r.FormValue("book")))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "malformed book payload")
			return
		}

		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			filename, perr := s.pipeline.Process(file, header.Filename, header.Header.Get("Content-Type"))
			if perr != nil {
				if errors.Is(perr, images.ErrUnsupportedType) {
					s.respondError(w, http.StatusBadRequest, "unsupported image type")
					return
				}
				s.logger.Printf("image pipeline error: %v", perr)
				s.respondError(w, http.StatusInternalServerError, "failed to process image")
				return
			}
			u := s.imageURL(r, filename)
			imageURL = &u
		case errors.Is(err, http.ErrMissingFile):
			// keep the existing cover
		default:
			s.respondError(w, http.StatusBadRequest, "invalid image upload")
			return
		}
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "unable to read request body")
			return
		}
		payload, err = parseBookPayload(body)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "malformed book payload")
			return
		}
	}

	params, err := buildUpdateParams(payload)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	params.ImageURL = imageURL

	if _, err := s.repo.Books.Update(r.Context(), id, params); err != nil {
		s.respondLookupError(w, err, "update book")
		return
	}

	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Book updated"})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing authenticated identity")
		return
	}
	id := chi.URLParam(r, "id")

	book, err := s.repo.Books.GetByID(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err, "fetch book for delete")
		return
	}
	if book.OwnerID != userID {
		s.respondError(w, http.StatusUnauthorized, "not authorized")
		return
	}

	// Best-effort removal of the stored cover; record deletion proceeds
	// regardless.
	s.pipeline.Remove(imageFilename(book.ImageURL))

	if err := s.repo.Books.Delete(r.Context(), id); err != nil {
		s.respondLookupError(w, err, "delete book")
		return
	}

	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Book deleted"})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.repo.Books.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "fetch book")
		return
	}
	s.respondJSON(w, http.StatusOK, toBookResponse(book))
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.repo.Books.List(r.Context())
	if err != nil {
		s.logger.Printf("list books error: %v", err)
		s.respondError(w, http.StatusBadRequest, "failed to list books")
		return
	}
	s.respondJSON(w, http.StatusOK, toBookResponses(books))
}

func (s *Server) handleBestRating(w http.ResponseWriter, r *http.Request) {
	books, err := s.repo.Books.TopRated(r.Context(), bestRatingLimit)
	if err != nil {
		s.logger.Printf("best rating error: %v", err)
		s.respondError(w, http.StatusBadRequest, "failed to list best rated books")
		return
	}
	s.respondJSON(w, http.StatusOK, toBookResponses(books))
}

func (s *Server) handleRateBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "missing authenticated identity")
		return
	}
	id := chi.URLParam(r, "id")

	var req ratingRequest
	if err := s.decodeJSONBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed rating payload")
		return
	}
	// The authenticated identity always wins over the body's userId.

	book, err := s.repo.Books.GetByID(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err, "fetch book for rating")
		return
	}

	if err := book.AddRating(userID, req.Rating); err != nil {
		if errors.Is(err, domain.ErrDuplicateRating) {
			s.respondError(w, http.StatusBadRequest, "user already rated this book")
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.repo.Books.SaveRatings(r.Context(), id, book.Ratings, book.AverageRating)
	if err != nil {
		s.respondLookupError(w, err, "save rating")
		return
	}

	s.respondJSON(w, http.StatusOK, toBookResponse(updated))
}

// parseBookPayload decodes client book fields. Unknown fields such as _id or
// _userId are ignored rather than rejected.
func parseBookPayload(raw []byte) (bookPayload, error) {
	var payload bookPayload
	if len(strings.TrimSpace(string(raw))) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return bookPayload{}, err
	}
	return payload, nil
}

func validateRequiredFields(p bookPayload) error {
	if p.Title == nil || strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if p.Author == nil || strings.TrimSpace(*p.Author) == "" {
		return fmt.Errorf("author is required")
	}
	if p.Genre == nil || strings.TrimSpace(*p.Genre) == "" {
		return fmt.Errorf("genre is required")
	}
	if p.Year == nil {
		return fmt.Errorf("year is required")
	}
	return nil
}

func buildUpdateParams(p bookPayload) (repository.BookUpdateParams, error) {
	var params repository.BookUpdateParams
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return params, fmt.Errorf("title cannot be empty")
		}
		params.Title = &title
	}
	if p.Author != nil {
		author := strings.TrimSpace(*p.Author)
		if author == "" {
			return params, fmt.Errorf("author cannot be empty")
		}
		params.Author = &author
	}
	if p.Genre != nil {
		genre := strings.TrimSpace(*p.Genre)
		if genre == "" {
			return params, fmt.Errorf("genre cannot be empty")
		}
		params.Genre = &genre
	}
	params.Year = p.Year
	return params, nil
}

// imageURL builds the public URL for a stored image. PUBLIC_BASE_URL wins when
// configured, otherwise scheme and host come from the request.
func (s *Server) imageURL(r *http.Request, filename string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/images/" + filename
}

// imageFilename extracts the stored filename from a persisted image URL.
func imageFilename(imageURL string) string {
	_, filename, found := strings.Cut(imageURL, "/images/")
	if !found {
		return ""
	}
	return filename
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondLookupError maps repository errors from single-book operations:
// missing books are 404, anything else is a server failure.
func (s *Server) respondLookupError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, repository.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	s.logger.Printf("%s error: %v", op, err)
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

func toBookResponse(book domain.Book) bookResponse {
	ratings := make([]ratingPayload, 0, len(book.Ratings))
	for _, r := range book.Ratings {
		ratings = append(ratings, ratingPayload{UserID: r.UserID, Grade: r.Grade})
	}
	return bookResponse{
		ID:            book.ID,
		UserID:        book.OwnerID,
		Title:         book.Title,
		Author:        book.Author,
		Year:          book.Year,
		Genre:         book.Genre,
		ImageURL:      book.ImageURL,
		Ratings:       ratings,
		AverageRating: book.AverageRating,
	}
}

func toBookResponses(books []domain.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for _, book := range books {
		out = append(out, toBookResponse(book))
	}
	return out
}
