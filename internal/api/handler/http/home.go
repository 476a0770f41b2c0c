package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/trongdv/bookstore/pkg/httputil"
	"github.com/trongdv/bookstore/pkg/pagination"
	"github.com/trongdv/bookstore/pkg/validator"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/service"
)

// HomeHandler serves the public catalog and account endpoints.
type HomeHandler struct {
	authService    *service.AuthService
	catalogService *service.CatalogService
	logger         *slog.Logger
}

// NewHomeHandler creates a new home HTTP handler.
func NewHomeHandler(authService *service.AuthService, catalogService *service.CatalogService, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{
		authService:    authService,
		catalogService: catalogService,
		logger:         logger,
	}
}

// BookListResponse echoes the filter alongside the page of books, so clients
// can render the active search state.
type BookListResponse struct {
	Books      pagination.Result[domain.Book] `json:"books"`
	Genres     []domain.Genre                 `json:"genres"`
	SearchTerm string                         `json:"sterm"`
	GenreID    int64                          `json:"genre_id"`
}

// GetBooks handles GET /api/home/books?sterm=&genreId=
func (h *HomeHandler) GetBooks(w http.ResponseWriter, r *http.Request) {
	sterm := r.URL.Query().Get("sterm")
	genreID, _ := strconv.ParseInt(r.URL.Query().Get("genreId"), 10, 64)

	filter := domain.BookFilter{SearchTerm: sterm, GenreID: genreID}
	books, err := h.catalogService.ListBooks(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	genres, err := h.catalogService.ListGenres(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, BookListResponse{
		Books:      *books,
		Genres:     genres,
		SearchTerm: sterm,
		GenreID:    genreID,
	})
}

// GetGenres handles GET /api/home/genres
func (h *HomeHandler) GetGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalogService.ListGenres(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, genres)
}

// GetBook handles GET /api/home/books/{id}
func (h *HomeHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid book id",
		})
		return
	}

	book, err := h.catalogService.GetBook(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, book)
}

type loginQuery struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Login handles POST /api/home/login?email=&password=
//
// Credentials ride in the query string rather than a body; the web frontend
// has always called it that way.
func (h *HomeHandler) Login(w http.ResponseWriter, r *http.Request) {
	q := loginQuery{
		Email:    r.URL.Query().Get("email"),
		Password: r.URL.Query().Get("password"),
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), q.Email, q.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type registerQuery struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	ClientURL string `validate:"required,url"`
}

// Register handles POST /api/home/register?Email=&Password=&ClientUrl=
func (h *HomeHandler) Register(w http.ResponseWriter, r *http.Request) {
	q := registerQuery{
		Email:     r.URL.Query().Get("Email"),
		Password:  r.URL.Query().Get("Password"),
		ClientURL: r.URL.Query().Get("ClientUrl"),
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if _, err := h.authService.Register(r.Context(), q.Email, q.Password, q.ClientURL); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Registration successful"})
}

// ConfirmEmail handles GET /api/home/confirm-email?userId=&code=
func (h *HomeHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	code := r.URL.Query().Get("code")

	if err := h.authService.ConfirmEmail(r.Context(), userID, code); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email confirmed successfully"})
}

type forgotPasswordQuery struct {
	Email     string `validate:"required,email"`
	ClientURL string `validate:"required,url"`
}

// ForgotPassword handles POST /api/home/forgot-password?Email=&ClientUrl=
// The response is identical whether or not the email is registered.
func (h *HomeHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	q := forgotPasswordQuery{
		Email:     r.URL.Query().Get("Email"),
		ClientURL: r.URL.Query().Get("ClientUrl"),
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), q.Email, q.ClientURL); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "If the email is registered, a reset link has been sent"})
}

type resetPasswordQuery struct {
	UserID   string `validate:"required"`
	Code     string `validate:"required"`
	Password string `validate:"required,min=8"`
}

// ResetPassword handles POST /api/home/reset-password?userId=&code=&password=
func (h *HomeHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	q := resetPasswordQuery{
		UserID:   r.URL.Query().Get("userId"),
		Code:     r.URL.Query().Get("code"),
		Password: r.URL.Query().Get("password"),
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), q.UserID, q.Code, q.Password); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}
