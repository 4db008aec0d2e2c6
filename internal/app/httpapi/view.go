// Package httpapi exposes the account endpoints over HTTP. Request behavior
// that varies across endpoints (permission checks, response context, the
// method handlers themselves) is declared as dispatch candidates on a view
// composition chain and resolved per request.
package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopfront/accounts/internal/dispatch"
	"github.com/shopfront/accounts/internal/middleware"
)

// Hook operations resolved on every request.
const (
	HookCheckPermissions = "check_permissions"
	HookResponseContext  = "response_context"
)

// Composition chain type names. Concrete views prepend their own name.
const (
	typeBaseView      = "View"
	typePublicView    = "PublicView"
	typeVersionedView = "VersionedView"
	typeAdminView     = "AdminView"
)

// View is one routed endpoint. Its behavior is assembled from the candidates
// reachable through its composition chain.
type View struct {
	name  string
	chain []string
	perms map[string]string // HTTP method -> required permission code
	api   *API
}

var _ dispatch.Hierarchical = (*View)(nil)

// TypeChain returns the view's composition chain, most-derived first.
func (v *View) TypeChain() []string { return v.chain }

// newView declares a view composed from the given mixins and registers its
// method handlers as candidates on the view's own type name.
func (a *API) newView(name string, mixins []string, perms map[string]string, handlers map[string]http.HandlerFunc) *View {
	chain := append([]string{name}, mixins...)
	chain = append(chain, typeBaseView)

	v := &View{name: name, chain: chain, perms: perms, api: a}
	for method, h := range handlers {
		handler := h
		a.resolver.Register(name, handlerOp(method), func(_ interface{}, args ...interface{}) (interface{}, error) {
			handler(args[0].(http.ResponseWriter), args[1].(*http.Request))
			return nil, nil
		})
	}
	return v
}

func handlerOp(method string) string {
	return "handle_" + strings.ToLower(method)
}

// ServeHTTP runs the request pipeline: permission hook, response-context hook,
// method handler. Resolution failures are wiring bugs and surface as 500
// rather than being silently defaulted.
func (v *View) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := v.api.resolver.Invoke(v, HookCheckPermissions, r); err != nil {
		v.api.writeHookError(w, r, err)
		return
	}

	ctx, err := v.api.resolver.Invoke(v, HookResponseContext, r)
	if err != nil {
		v.api.writeHookError(w, r, err)
		return
	}
	if headers, ok := ctx.(map[string]string); ok {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
	}

	if _, err := v.api.resolver.Invoke(v, handlerOp(r.Method), w, r); err != nil {
		v.api.writeHookError(w, r, err)
	}
}

func (a *API) writeHookError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.status, apiErr.message)
		return
	}
	a.log.WithContext(r.Context()).WithError(err).Error("hook resolution failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

// registerHooks declares the shared hook candidates once per resolver. The
// base view requires authentication and enforces the per-method permission
// table; the public mixin overrides that to admit anonymous callers. Response
// context comes from the versioned mixin unless the admin mixin, registered at
// a higher priority, supersedes it.
func (a *API) registerHooks() {
	a.resolver.Register(typeBaseView, HookCheckPermissions, func(instance interface{}, args ...interface{}) (interface{}, error) {
		v := instance.(*View)
		r := args[0].(*http.Request)
		return nil, v.api.checkPermissions(r, v.perms[r.Method])
	})

	a.resolver.Register(typePublicView, HookCheckPermissions, func(interface{}, ...interface{}) (interface{}, error) {
		return nil, nil
	}, dispatch.AsOverride())

	a.resolver.Register(typeBaseView, HookResponseContext, func(interface{}, ...interface{}) (interface{}, error) {
		return map[string]string{}, nil
	})

	a.resolver.Register(typeVersionedView, HookResponseContext, func(interface{}, ...interface{}) (interface{}, error) {
		return map[string]string{"Content-Version": "v1"}, nil
	}, dispatch.AsOverride(), dispatch.WithPriority(1))

	a.resolver.Register(typeAdminView, HookResponseContext, func(interface{}, ...interface{}) (interface{}, error) {
		return map[string]string{
			"Content-Version": "v1",
			"Cache-Control":   "no-store",
		}, nil
	}, dispatch.AsOverride(), dispatch.WithPriority(2))
}

// checkPermissions enforces the base access rule: the caller must be
// authenticated, and when the method carries a permission code the caller's
// account must hold it.
func (a *API) checkPermissions(r *http.Request, perm string) error {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return &apiError{status: http.StatusUnauthorized, message: "authentication required"}
	}
	if perm == "" {
		return nil
	}

	u, err := a.users.Get(r.Context(), userID)
	if err != nil {
		return &apiError{status: http.StatusUnauthorized, message: "authentication required"}
	}
	if !a.roles.Has(u, perm) {
		return &apiError{status: http.StatusForbidden, message: "you do not have permission to perform this action"}
	}
	return nil
}
