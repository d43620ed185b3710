// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/emoji-auth/internal/platform/middleware"
	requestutil "github.com/taibuivan/emoji-auth/internal/platform/request"
	"github.com/taibuivan/emoji-auth/internal/platform/respond"
	"github.com/taibuivan/emoji-auth/internal/platform/validate"
)

// Handler implements the auth HTTP endpoints.
//
// # Scope
//
// Handlers decode and validate statically declared request structs, then hand
// well-formed arguments to [Service]. They contain no lifecycle rules.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with the auth routes.
//
// # Endpoints
//   - POST /init     : Anonymous session, or refresh for a current token.
//   - POST /login    : Name and password.
//   - POST /refresh  : Re-issue, accepting an expired token.
//   - POST /register : Requires a valid token.
//   - POST /change   : Requires a valid, non-expired token.
//
// The router expects [middleware.Authenticate] to run upstream.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/init", handler.init)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Post("/register", handler.register)
		protected.Post("/change", handler.change)
	})

	return router
}

// # Request Shapes

type metaRequest struct {
	Meta Meta `json:"meta"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Meta     Meta   `json:"meta"`
}

type changeRequest struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// # Handlers

// init handles POST /api/v1/auth/init. The body is optional.
func (handler *Handler) init(writer http.ResponseWriter, request *http.Request) {
	var input metaRequest
	if err := requestutil.DecodeOptionalJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := validateMeta(&validate.Validator{}, input.Meta).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Init(request.Context(), requestutil.Claims(request), input.Meta)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// register handles POST /api/v1/auth/register.
//
// # Returns
//   - 200 with a session carrying the bumped version.
//   - 400 when validation fails, 409 on NAME_CONFLICT, 404 when already registered.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────
	var input registerRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────
	validator := &validate.Validator{}
	validateName(validator, "name", input.Name)
	validatePassword(validator, "password", input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), claims, input.Name, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// login handles POST /api/v1/auth/login.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Presence only; length rules belong to register and change.
	validator := &validate.Validator{}
	validator.Required("name", input.Name).Required("password", input.Password)
	if err := validateMeta(validator, input.Meta).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), input.Name, input.Password, input.Meta)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// refresh handles POST /api/v1/auth/refresh.
//
// It reads the raw header itself because [middleware.Authenticate] rejects
// expired tokens, which refresh must accept.
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	rawToken, err := requestutil.BearerToken(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input metaRequest
	if err := requestutil.DecodeOptionalJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := validateMeta(&validate.Validator{}, input.Meta).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Refresh(request.Context(), rawToken, input.Meta)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// change handles POST /api/v1/auth/change.
func (handler *Handler) change(writer http.ResponseWriter, request *http.Request) {
	var input changeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validateName(validator, "name", input.Name)
	validator.Required("password", input.Password)
	validatePassword(validator, "new_password", input.NewPassword)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Change(request.Context(), claims, input.Name, input.Password, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// # Validation Rules

func validateName(validator *validate.Validator, field, name string) *validate.Validator {
	return validator.
		Required(field, name).
		MinLen(field, name, NameMinLength).
		MaxLen(field, name, NameMaxLength).
		Printable(field, name)
}

func validatePassword(validator *validate.Validator, field, password string) *validate.Validator {
	return validator.
		Required(field, password).
		MinLen(field, password, PasswordMinLength).
		MaxBytes(field, password, PasswordMaxBytes)
}

func validateMeta(validator *validate.Validator, meta Meta) *validate.Validator {
	return validator.MaxKeys("meta", len(meta), MetaMaxKeys)
}
