package library

import (
	"errors"
	"log/slog"
	"net/http"

	"bookthing/internal/httpx"
)

// HTTPHandler serves the /api/library resource.
type HTTPHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewHTTPHandler wires service into handlers; a nil logger means slog.Default.
func NewHTTPHandler(service *Service, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{service: service, logger: logger}
}

// List handles GET /api/library
// @Summary List all books
// @Description Returns every book in the library as a bare JSON array
// @Tags library
// @Produce json
// @Success 200 {array} Book
// @Failure 500 {object} httpx.ErrorResponse
// @Router /api/library [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list books failed", "request_id", httpx.RequestIDFrom(r), "error", err)
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, books)
}

// Create handles POST /api/library
// @Summary Add a book
// @Tags library
// @Accept json
// @Produce json
// @Param book body NewBook true "Book to add"
// @Success 201 {object} Book
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 413 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /api/library [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if err := httpx.DecodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.JSONError(w, r, http.StatusRequestEntityTooLarge, httpx.CodeTooLarge, "Request body too large", nil)
			return
		}
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeBadRequest, "Invalid JSON body", nil)
		return
	}

	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", details)
		return
	}

	book, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidBook) {
			httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, err.Error(), nil)
			return
		}
		h.logger.Error("create book failed", "request_id", httpx.RequestIDFrom(r), "error", err)
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error", nil)
		return
	}

	h.logger.Info("book created", "request_id", httpx.RequestIDFrom(r), "book_id", book.ID)
	httpx.JSON(w, http.StatusCreated, book)
}
