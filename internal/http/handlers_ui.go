package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
)

type summaryView struct {
	Year       int
	Month      int
	Summary    core.Summary
	Categories []core.CategoryAmount
	Prev, Next MonthParams
}

func newSummaryView(year, month int, summary core.Summary) summaryView {
	first := core.NewDate(year, month, 1)
	prev, next := first.AddDays(-1), first.AddDays(core.DaysIn(year, month))
	return summaryView{
		Year:       year,
		Month:      month,
		Summary:    summary,
		Categories: summary.ByCategory(),
		Prev:       MonthParams{Year: prev.Year(), Month: prev.Month()},
		Next:       MonthParams{Year: next.Year(), Month: next.Month()},
	}
}

type dashboardView struct {
	MonthSummary  summaryView
	Accounts      []core.Account
	Total         decimal.Decimal
	Subscriptions []core.Subscription
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		s.fail(w, r, nil, http.StatusUnprocessableEntity, err)
		return
	}

	summary, err := s.monthlySummary(ctx, period.Year, period.Month)
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		s.fail(w, r, nil, http.StatusInternalServerError, err)
		return
	}

	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}

	s.render(w, r, "index.html", "layout.html", pageData{
		Title: pageTitles["index.html"],
		Data: dashboardView{
			MonthSummary:  newSummaryView(period.Year, period.Month, summary),
			Accounts:      accounts,
			Total:         total,
			Subscriptions: subs,
		},
	})
}

func (s *Server) handleMonthSummaryPartial(w http.ResponseWriter, r *http.Request) {
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
	s.render(w, r, partialSet, "month-summary", newSummaryView(period.Year, period.Month, summary))
}

// accountsPage renders a form page that offers the current accounts.
func (s *Server) accountsPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.store.ListAccounts(r.Context())
		if err != nil {
			s.fail(w, r, nil, http.StatusInternalServerError, err)
			return
		}
		s.render(w, r, name, "layout.html", pageData{
			Title: pageTitles[name],
			Data: struct {
				Accounts []core.Account
				Today    core.Date
			}{accounts, s.today()},
		})
	}
}

func (s *Server) handleRemoveAccountForm(w http.ResponseWriter, r *http.Request) {
	s.accountsPage("account_remove.html")(w, r)
}

func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request) {
	s.accountsPage("transaction_new.html")(w, r)
}

func (s *Server) handleSubscriptionForm(w http.ResponseWriter, r *http.Request) {
	s.accountsPage("subscription_new.html")(w, r)
}

// parseBody reads a form or JSON body, answering 400 itself on failure.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if wantsJSON(r, p) || r.Header.Get("Content-Type") == "application/json" {
			JSONError(http.StatusBadRequest, "invalid request body").Write(w)
		} else {
			BadRequestError("invalid request body").Write(w)
		}
		return nil, false
	}
	return p, true
}

// created answers a successful write: JSON clients get the stored value,
// HTMX gets triggers and a notification, plain forms are redirected home.
func (s *Server) created(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, value any, htmx *HTMXResponseBuilder) {
	switch {
	case wantsJSON(r, p):
		NewHTMXResponse().Status(http.StatusCreated).BodyJSON(value).Write(w)
	case r.Header.Get("HX-Request") == "true":
		htmx.Write(w)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	account, err := p.AccountInput()
	if err != nil {
		s.fail(w, r, p, http.StatusUnprocessableEntity, err)
		return
	}

	saved, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		s.fail(w, r, p, errorStatus(err, http.StatusUnprocessableEntity), err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		log.FieldAccount, saved.Name,
		log.FieldAmount, saved.Balance.String())

	s.created(w, r, p, saved, NewHTMXResponse().
		TriggerAccountsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Account "+saved.Name+" created"))
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	name := p.Get("name")
	if name == "" {
		s.fail(w, r, p, http.StatusUnprocessableEntity, core.ErrEmptyName)
		return
	}

	if err := s.store.DeleteAccount(r.Context(), name); err != nil {
		s.fail(w, r, p, errorStatus(err, http.StatusNotFound), err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account removed", log.FieldAccount, name)

	if wantsJSON(r, p) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.created(w, r, p, nil, NewHTMXResponse().
		TriggerAccountsChanged().
		TriggerSuccessNotification("Account "+name+" removed"))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	t, err := p.TransactionInput(s.today())
	if err != nil {
		s.fail(w, r, p, http.StatusUnprocessableEntity, err)
		return
	}

	saved, err := s.store.AddTransaction(r.Context(), t)
	if err != nil {
		s.fail(w, r, p, errorStatus(err, http.StatusUnprocessableEntity), err)
		return
	}
	s.invalidateMonth(saved.Date)
	s.appMetrics.transactions.Add(1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().WithTransaction(saved.PaymentMethod, saved.Amount.String(), saved.Category, saved.Date.String())...)

	s.created(w, r, p, saved, NewHTMXResponse().
		TriggerTransactionCreated(saved.Date.Year(), saved.Date.Month()).
		TriggerSummaryRefresh(saved.Date.Year(), saved.Date.Month()).
		TriggerAccountsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Transaction saved"))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	sub, err := p.SubscriptionInput()
	if err != nil {
		s.fail(w, r, p, http.StatusUnprocessableEntity, err)
		return
	}

	saved, err := s.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		s.fail(w, r, p, errorStatus(err, http.StatusUnprocessableEntity), err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Subscription created",
		"name", saved.Name,
		"payment_day", saved.PaymentDay,
		log.FieldAccount, saved.PaymentMethod)

	s.created(w, r, p, saved, NewHTMXResponse().
		TriggerSubscriptionsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Subscription "+saved.Name+" saved"))
}
