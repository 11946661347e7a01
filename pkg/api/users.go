package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subledger/pkg/user"
)

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var in user.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	u, err := h.Users.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, u, "user created")
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		u, err := h.Users.GetByEmail(r.Context(), email)
		if err != nil {
			h.fail(w, r, err, "")
			return
		}
		ok(w, []user.User{u})
		return
	}
	users, err := h.Users.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, users)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, u)
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var in user.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	u, err := h.Users.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, u, "user updated")
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, nil, "user deleted")
}

func (h *handlers) activateUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, u, "user activated")
}

func (h *handlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, u, "user deactivated")
}

func (h *handlers) userSubscriptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Users.Get(r.Context(), id); err != nil {
		h.fail(w, r, err, "")
		return
	}
	subs, err := h.Subscriptions.ListByUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, subs)
}

func (h *handlers) userActiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subscriptions.ActiveForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, subs)
}

func (h *handlers) userTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.ByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, txs)
}
