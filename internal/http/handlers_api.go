package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewHTMXResponse().Status(status).BodyJSON(v).Write(w)
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	period, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		s.fail(w, r, nil, http.StatusUnprocessableEntity, err)
		return
	}
	summary, err := s.monthlySummary(r.Context(), period.Year, period.Month)
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAPIBalances(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.AccountBalances(accounts))
}

type projectionResponse struct {
	Account string          `json:"account"`
	Months  int             `json:"months"`
	AsOf    core.Date       `json:"as_of"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleAPIProjection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	months, err := ParseMonths(r.URL.Query())
	if err != nil {
		s.fail(w, r, nil, http.StatusUnprocessableEntity, err)
		return
	}

	l, err := s.store.LoadLedger(r.Context())
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}
	today := s.today()
	balance, err := l.AsOf(today).FutureBalance(name, months, today)
	if err != nil {
		s.fail(w, r, nil, errorStatus(err, http.StatusNotFound), err)
		return
	}

	writeJSON(w, http.StatusOK, projectionResponse{
		Account: name,
		Months:  months,
		AsOf:    today,
		Balance: balance,
	})
}

type processResponse struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// handleAPIProcessSubscriptions books the month's subscriptions. Payments
// that could be booked stay booked; the response lists the ones that could
// not, with 422 when every failure is an invalid date and 500 otherwise.
// HTMX callers also get a summary refresh and a notification.
func (s *Server) handleAPIProcessSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		JSONError(http.StatusServiceUnavailable, "subscription processing unavailable").Write(w)
		return
	}
	period, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		s.fail(w, r, nil, http.StatusUnprocessableEntity, err)
		return
	}

	result, err := s.runner.ProcessMonth(r.Context(), period.Year, period.Month)
	if result.Processed > 0 {
		s.invalidateMonth(core.NewDate(period.Year, period.Month, 1))
	}

	resp := processResponse{
		Year:      period.Year,
		Month:     period.Month,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
		for _, e := range joinedErrors(err) {
			resp.Errors = append(resp.Errors, e.Error())
			if !errors.Is(e, core.ErrInvalidDate) && !errors.Is(e, core.ErrInvalidMonth) {
				status = http.StatusInternalServerError
			}
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Subscription processing incomplete",
			log.NewFields().WithPeriod(period.Year, period.Month).WithOperation(log.OpProcess).WithError(err)...)
	}

	if r.Header.Get("HX-Request") != "true" {
		writeJSON(w, status, resp)
		return
	}
	b := NewHTMXResponse().Status(status).BodyJSON(resp).TriggerSummaryRefresh(period.Year, period.Month)
	if resp.Processed > 0 {
		b.TriggerAccountsChanged()
	}
	switch {
	case status == http.StatusInternalServerError:
		b.TriggerErrorNotification(fmt.Sprintf("Booked %d payments, %d failed", resp.Processed, resp.Failed))
	case resp.Failed > 0:
		b.TriggerErrorNotification(fmt.Sprintf("Booked %d payments, could not book %d: %s",
			resp.Processed, resp.Failed, strings.Join(resp.Errors, "; ")))
	default:
		b.TriggerSuccessNotification(fmt.Sprintf("Booked %d payments for %s %d (%d already booked)",
			resp.Processed, monthName(period.Month), period.Year, resp.Skipped))
	}
	b.Write(w)
}
