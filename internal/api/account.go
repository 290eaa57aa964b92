package api

import (
	"net/http"
	"strconv"

	"github.com/nadmax/fieldops/internal/httputil"
	"github.com/nadmax/fieldops/internal/service"
)

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := a.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, user, http.StatusOK)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req service.ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := a.accounts.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, user, http.StatusOK)
}

func (a *API) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req service.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := a.accounts.ChangePassword(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, result, http.StatusOK)
}

func parseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
