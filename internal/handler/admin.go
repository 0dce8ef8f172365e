package handler

import (
	"net/http"
	"strconv"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/repository"
	"github.com/sakif/foodtrack/internal/service"
)

// AdminHandler serves admin-only endpoints. The permission check lives in
// the service; this handler only parses the request.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authSvc}
}

// HandleListUsers returns a page of accounts.
//
// HTTP: GET /api/admin/users?limit=20&offset=0
// 403 unless the caller is an admin.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.auth.ListUsers(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("limit", "limit must be a number")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("offset", "offset must be a number")
		}
		opts.Offset = n
	}
	return opts.Normalize(), nil
}
