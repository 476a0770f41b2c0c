// Package handler renders the server-side HTML frontend and bridges browser
// sessions to the API.
package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	"github.com/trongdv/bookstore/pkg/health"
	"github.com/trongdv/bookstore/pkg/middleware"

	"github.com/trongdv/bookstore/internal/web/apiclient"
	"github.com/trongdv/bookstore/internal/web/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web frontend.
type Handler struct {
	api       *apiclient.Client
	sessions  *session.Manager
	templates *template.Template
	baseURL   string
	logger    *slog.Logger
}

// New creates the frontend handler. baseURL is this site's external address,
// used to build the ClientUrl for emailed links.
func New(api *apiclient.Client, sessions *session.Manager, baseURL string, logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"currency": func(v float64) string {
			return fmt.Sprintf("%.0f ₫", v)
		},
		"add": func(a, b int) int { return a + b },
		"mul": func(price float64, qty int) float64 { return price * float64(qty) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Handler{
		api:       api,
		sessions:  sessions,
		templates: tmpl,
		baseURL:   baseURL,
		logger:    logger,
	}, nil
}

// Routes returns the frontend router.
func (h *Handler) Routes(healthHandler *health.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestLogging(h.logger))
	r.Use(middleware.PrometheusMetrics("web"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	r.Get("/", h.Home)

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.Get("/confirm-email", h.ConfirmEmail)

	r.Get("/forgot-password", h.ForgotPasswordForm)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Get("/reset-password", h.ResetPasswordForm)
	r.Post("/reset-password", h.ResetPassword)

	r.Get("/cart", h.Cart)
	r.Post("/cart/add", h.AddToCart)
	r.Post("/cart/remove", h.RemoveFromCart)
	r.Post("/cart/checkout", h.Checkout)

	r.Get("/orders", h.Orders)

	return r
}

// page is the data passed to every template.
type page struct {
	Principal *session.Principal
	CartCount int
	Error     string
	Info      string
	Data      any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, p page) {
	p.Principal = h.sessions.Principal(r)

	if p.Principal != nil && p.CartCount == 0 {
		if count, err := h.api.CartCount(r.Context(), h.sessions.Token(r)); err == nil {
			p.CartCount = count
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, p); err != nil {
		h.logger.ErrorContext(r.Context(), "render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// Home renders the catalog with optional search and genre filters.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	sterm := r.URL.Query().Get("sterm")
	genreID, _ := strconv.ParseInt(r.URL.Query().Get("genreId"), 10, 64)
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))

	list, err := h.api.GetBooks(r.Context(), sterm, genreID, pageNum)
	if err != nil {
		h.render(w, r, "home.html", page{Error: "The catalog is unavailable right now."})
		return
	}
	h.render(w, r, "home.html", page{Data: list})
}

// LoginForm renders the login page.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", page{})
}

// Login signs the user in against the API and stores the access token in the
// session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", page{Error: "Invalid form submission."})
		return
	}

	result, err := h.api.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		h.render(w, r, "login.html", page{Error: loginErrorMessage(err)})
		return
	}

	if err := h.sessions.Set(w, result.AccessToken); err != nil {
		h.logger.ErrorContext(r.Context(), "store session token", slog.String("error", err.Error()))
		h.render(w, r, "login.html", page{Error: "Something went wrong. Please try again."})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrAccountInactive):
		return "Your account is inactive"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "Invalid email or password."
	default:
		return "Sign-in is unavailable right now. Please try again later."
	}
}

// Logout clears the session cookie. The token itself simply ages out; the API
// keeps no session state to revoke.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterForm renders the registration page.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", page{})
}

// Register creates an account via the API. The confirmation link in the email
// points back at this frontend's confirm-email page.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "register.html", page{Error: "Invalid form submission."})
		return
	}

	password := r.PostFormValue("password")
	if password != r.PostFormValue("confirm_password") {
		h.render(w, r, "register.html", page{Error: "Passwords do not match."})
		return
	}

	clientURL := h.baseURL + "/confirm-email"
	err := h.api.Register(r.Context(), r.PostFormValue("email"), password, clientURL)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			h.render(w, r, "register.html", page{Error: appErr.Message})
			return
		}
		h.render(w, r, "register.html", page{Error: "Registration is unavailable right now."})
		return
	}

	h.render(w, r, "login.html", page{Info: "Registration successful. Check your email to confirm your account."})
}

// ConfirmEmail lands the emailed confirmation link and forwards it to the API.
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	code := r.URL.Query().Get("code")

	if err := h.api.ConfirmEmail(r.Context(), userID, code); err != nil {
		h.render(w, r, "login.html", page{Error: "This confirmation link is invalid or has already been used."})
		return
	}
	h.render(w, r, "login.html", page{Info: "Email confirmed. You can sign in now."})
}

// ForgotPasswordForm renders the forgot-password page.
func (h *Handler) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "forgot_password.html", page{})
}

// ForgotPassword requests a reset email. The confirmation message is the same
// whether or not the address is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "forgot_password.html", page{Error: "Invalid form submission."})
		return
	}

	clientURL := h.baseURL + "/reset-password"
	if err := h.api.ForgotPassword(r.Context(), r.PostFormValue("email"), clientURL); err != nil {
		h.render(w, r, "forgot_password.html", page{Error: "Password reset is unavailable right now."})
		return
	}
	h.render(w, r, "forgot_password.html", page{Info: "If the email is registered, a reset link has been sent."})
}

// resetForm carries the link parameters through the reset form.
type resetForm struct {
	UserID string
	Code   string
}

// ResetPasswordForm renders the reset page from an emailed link.
func (h *Handler) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "reset_password.html", page{Data: resetForm{
		UserID: r.URL.Query().Get("userId"),
		Code:   r.URL.Query().Get("code"),
	}})
}

// ResetPassword submits the new password to the API.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "reset_password.html", page{Error: "Invalid form submission."})
		return
	}

	form := resetForm{
		UserID: r.PostFormValue("userId"),
		Code:   r.PostFormValue("code"),
	}
	password := r.PostFormValue("password")
	if password != r.PostFormValue("confirm_password") {
		h.render(w, r, "reset_password.html", page{Error: "Passwords do not match.", Data: form})
		return
	}

	if err := h.api.ResetPassword(r.Context(), form.UserID, form.Code, password); err != nil {
		h.render(w, r, "reset_password.html", page{Error: "This reset link is invalid or has already been used.", Data: form})
		return
	}
	h.render(w, r, "login.html", page{Info: "Password reset. You can sign in now."})
}

// requireToken returns the session token or redirects to the login page.
func (h *Handler) requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := h.sessions.Token(r)
	if token == "" || h.sessions.Principal(r) == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return "", false
	}
	return token, true
}

// Cart renders the cart page.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	cart, err := h.api.GetCart(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			h.sessions.Clear(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.render(w, r, "cart.html", page{Error: "Your cart is unavailable right now."})
		return
	}
	h.render(w, r, "cart.html", page{Data: cart})
}

// AddToCart adds a book and returns to the catalog.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	bookID, err := strconv.ParseInt(r.PostFormValue("bookId"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	qty, err := strconv.Atoi(r.PostFormValue("qty"))
	if err != nil || qty < 1 {
		qty = 1
	}

	if err := h.api.AddCartItem(r.Context(), token, bookID, qty); err != nil {
		h.logger.WarnContext(r.Context(), "add to cart failed",
			slog.Int64("book_id", bookID),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// RemoveFromCart decrements a line and returns to the cart.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	if bookID, err := strconv.ParseInt(r.PostFormValue("bookId"), 10, 64); err == nil {
		_ = h.api.RemoveCartItem(r.Context(), token, bookID)
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// Checkout places the order. VnPay checkouts are redirected to the gateway;
// cash-on-delivery goes straight to the orders page.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	form := apiclient.CheckoutForm{
		Name:          r.PostFormValue("name"),
		Email:         r.PostFormValue("email"),
		Mobile:        r.PostFormValue("mobile"),
		Address:       r.PostFormValue("address"),
		PaymentMethod: r.PostFormValue("payment_method"),
	}
	if form.Name == "" || form.Email == "" || form.Mobile == "" || form.Address == "" {
		h.render(w, r, "cart.html", page{Error: "Please fill in your shipping details."})
		return
	}

	result, err := h.api.Checkout(r.Context(), token, form)
	if err != nil {
		h.render(w, r, "cart.html", page{Error: checkoutErrorMessage(err)})
		return
	}

	if result.PaymentURL != "" {
		if _, err := url.Parse(result.PaymentURL); err == nil {
			http.Redirect(w, r, result.PaymentURL, http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/orders", http.StatusSeeOther)
}

func checkoutErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return appErr.Message
	}
	return "Checkout is unavailable right now. Please try again."
}

// Orders renders the caller's order history.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	orders, err := h.api.MyOrders(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			h.sessions.Clear(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.render(w, r, "orders.html", page{Error: "Your orders are unavailable right now."})
		return
	}
	h.render(w, r, "orders.html", page{Data: orders})
}
