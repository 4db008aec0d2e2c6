package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopfront/accounts/internal/app/domain/user"
	"github.com/shopfront/accounts/internal/app/metrics"
	"github.com/shopfront/accounts/internal/app/services/auth"
	"github.com/shopfront/accounts/internal/app/services/users"
	"github.com/shopfront/accounts/internal/dispatch"
	"github.com/shopfront/accounts/internal/middleware"
	"github.com/shopfront/accounts/pkg/logger"
)

// API holds the handlers for the account endpoints.
type API struct {
	users    *users.Service
	auth     *auth.Service
	roles    *Roles
	resolver *dispatch.Resolver
	log      *logger.Logger

	views apiViews
}

type apiViews struct {
	token         *View
	tokenRefresh  *View
	tokenVerify   *View
	current       *View
	admin         *View
	createBasic   *View
	activate      *View
	requestReset  *View
	resetPassword *View
	changePass    *View
}

// NewAPI wires the endpoint views and their dispatch candidates.
func NewAPI(userSvc *users.Service, authSvc *auth.Service, roles *Roles, log *logger.Logger) *API {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if roles == nil {
		roles = NewRoles("")
	}
	a := &API{
		users:    userSvc,
		auth:     authSvc,
		roles:    roles,
		resolver: dispatch.NewResolver(),
		log:      log,
	}
	a.registerHooks()

	public := []string{typePublicView}
	admin := []string{typeAdminView, typeVersionedView}

	a.views = apiViews{
		token: a.newView("TokenView", public, nil, map[string]http.HandlerFunc{
			http.MethodPost: a.handleIssueToken,
		}),
		tokenRefresh: a.newView("TokenRefreshView", public, nil, map[string]http.HandlerFunc{
			http.MethodPost: a.handleRefreshToken,
		}),
		tokenVerify: a.newView("TokenVerifyView", public, nil, map[string]http.HandlerFunc{
			http.MethodPost: a.handleVerifyToken,
		}),
		current: a.newView("CurrentUserView", []string{typeVersionedView}, nil, map[string]http.HandlerFunc{
			http.MethodGet:   a.handleCurrentUser,
			http.MethodPatch: a.handleUpdateCurrentUser,
		}),
		admin: a.newView("UserAdminView", admin, map[string]string{
			http.MethodGet:    PermViewUser,
			http.MethodPatch:  PermChangeUser,
			http.MethodDelete: PermDeleteUser,
		}, map[string]http.HandlerFunc{
			http.MethodGet:    a.handleListUsers,
			http.MethodPatch:  a.handleAdminUpdateUser,
			http.MethodDelete: a.handleDeleteUser,
		}),
		createBasic: a.newView("CreateBasicUserView", admin, map[string]string{
			http.MethodPost: PermAddUser,
		}, map[string]http.HandlerFunc{
			http.MethodPost: a.handleCreateBasicUser,
		}),
		activate: a.newView("ActivateUserView", public, nil, map[string]http.HandlerFunc{
			http.MethodGet:   a.handleActivationLookup,
			http.MethodPatch: a.handleActivate,
		}),
		requestReset: a.newView("RequestPasswordResetView", public, nil, map[string]http.HandlerFunc{
			http.MethodPost: a.handleRequestPasswordReset,
		}),
		resetPassword: a.newView("ResetPasswordView", public, nil, map[string]http.HandlerFunc{
			http.MethodPost: a.handleResetPassword,
		}),
		changePass: a.newView("ChangePasswordView", []string{typeVersionedView}, nil, map[string]http.HandlerFunc{
			http.MethodPatch: a.handleChangePassword,
		}),
	}
	return a
}

// Resolver exposes the dispatch registry, mainly so tests can observe it.
func (a *API) Resolver() *dispatch.Resolver { return a.resolver }

// --- token endpoints ---------------------------------------------------------

func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, _, err := a.auth.IssueTokens(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.RecordLogin("failure")
		writeError(w, http.StatusUnauthorized, "no active account found with the given credentials")
		return
	}
	metrics.RecordLogin("success")
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	access, err := a.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (a *API) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.auth.Verify(req.Token); err != nil {
		writeError(w, http.StatusUnauthorized, "token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

// --- profile endpoints -------------------------------------------------------

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (req updateUserRequest) params() users.UpdateParams {
	return users.UpdateParams{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
}

func (a *API) handleUpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := a.users.Update(r.Context(), middleware.GetUserID(r.Context()), req.params())
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- administration endpoints ------------------------------------------------

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("user_id"); id != "" {
		u, err := a.users.Get(r.Context(), id)
		if err != nil {
			a.serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
		return
	}

	list, err := a.users.List(r.Context())
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := a.users.Update(r.Context(), id, req.params())
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := a.users.Deactivate(r.Context(), id); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateBasicUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := a.users.Invite(r.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// --- activation endpoints ----------------------------------------------------

func (a *API) handleActivationLookup(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	u, err := a.users.LookupActivation(r.Context(), token)
	if errors.Is(err, users.ErrAlreadyActivated) {
		// The frontend treats 226 as "this invitation was already used".
		writeJSON(w, http.StatusIMUsed, map[string]string{"message": "account already activated"})
		return
	}
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleActivate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := users.ActivateParams{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
			return
		}
		params.DateOfBirth = &dob
	}

	u, err := a.users.Activate(r.Context(), token, params)
	if errors.Is(err, users.ErrAlreadyActivated) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- password endpoints ------------------------------------------------------

// envelope is the response shape of the password reset endpoints.
type envelope struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func writeEnvelope(w http.ResponseWriter, code int, status, message string) {
	writeJSON(w, code, envelope{Status: status, Code: code, Message: message, Data: []interface{}{}})
}

func (a *API) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeEnvelope(w, http.StatusBadRequest, "error", "email is required")
		return
	}

	err := a.auth.RequestPasswordReset(r.Context(), req.Email)
	if user.IsNotFound(err) {
		writeEnvelope(w, http.StatusNotFound, "error", "there is no active account associated with this e-mail address")
		return
	}
	if err != nil {
		a.log.WithContext(r.Context()).WithError(err).Error("password reset request failed")
		writeEnvelope(w, http.StatusInternalServerError, "error", "could not send password reset link")
		return
	}

	metrics.RecordPasswordReset("requested")
	writeEnvelope(w, http.StatusOK, "success", "password reset link sent")
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.Password == "" {
		writeEnvelope(w, http.StatusBadRequest, "error", "token and password are required")
		return
	}

	err := a.auth.ResetPassword(r.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		metrics.RecordPasswordReset("completed")
		writeEnvelope(w, http.StatusOK, "success", "password reset successful")
	case user.IsNotFound(err):
		writeEnvelope(w, http.StatusNotFound, "error", "invalid token")
	case errors.Is(err, auth.ErrResetTokenExpired):
		writeEnvelope(w, http.StatusBadRequest, "error", err.Error())
	case user.IsValidationError(err):
		writeEnvelope(w, http.StatusBadRequest, "error", err.Error())
	default:
		a.log.WithContext(r.Context()).WithError(err).Error("password reset failed")
		writeEnvelope(w, http.StatusInternalServerError, "error", "could not reset password")
	}
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.auth.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "password updated successfully"})
	case errors.Is(err, auth.ErrWrongPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case user.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.serviceError(w, r, err)
	}
}

// --- helpers -----------------------------------------------------------------

// apiError carries an HTTP status through the dispatch hooks.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

// serviceError translates domain errors to HTTP responses.
func (a *API) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case user.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case user.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.WithContext(r.Context()).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
