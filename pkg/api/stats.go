package api

import (
	"net/http"

	"github.com/dmitrymomot/subledger/pkg/stats"
)

func parseStatsFilter(r *http.Request) (stats.Filter, error) {
	q := r.URL.Query()
	f := stats.Filter{
		UserID: q.Get("user_id"),
		PlanID: q.Get("plan_id"),
	}
	var err error
	if f.From, err = queryTime(q, "from"); err != nil {
		return stats.Filter{}, err
	}
	if f.To, err = queryTime(q, "to"); err != nil {
		return stats.Filter{}, err
	}
	return f, nil
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	f, err := parseStatsFilter(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	s, err := h.Stats.Summary(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, s)
}

func (h *handlers) monthlyRevenue(w http.ResponseWriter, r *http.Request) {
	f, err := parseStatsFilter(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	months, err := h.Stats.MonthlyRevenue(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, months)
}

func (h *handlers) planBreakdown(w http.ResponseWriter, r *http.Request) {
	f, err := parseStatsFilter(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	plans, err := h.Stats.PlanBreakdown(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, plans)
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	f, err := parseStatsFilter(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	rep, err := h.Stats.Report(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, rep)
}
