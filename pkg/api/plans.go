package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subledger/pkg/catalog"
)

func (h *handlers) createPlan(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	p, err := h.Plans.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, p, "plan created")
}

// listPlans serves GET /plans?active=true and GET /plans?interval=monthly.
// Filtering by interval lists active plans only.
func (h *handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("interval"); raw != "" {
		interval, err := catalog.ParseInterval(raw)
		if err != nil {
			h.fail(w, r, errors.Join(ErrInvalidParam, err), "")
			return
		}
		plans, err := h.Plans.ListByInterval(r.Context(), interval)
		if err != nil {
			h.fail(w, r, err, "")
			return
		}
		ok(w, plans)
		return
	}

	activeOnly, err := queryBool(q, "active")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	plans, err := h.Plans.List(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, plans)
}

func (h *handlers) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, p)
}

func (h *handlers) updatePlan(w http.ResponseWriter, r *http.Request) {
	var in catalog.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	p, err := h.Plans.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, p, "plan updated")
}

func (h *handlers) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Plans.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, nil, "plan deleted")
}

func (h *handlers) activatePlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, p, "plan activated")
}

func (h *handlers) deactivatePlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, p, "plan deactivated")
}
