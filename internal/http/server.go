package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	"budget/internal/storage"
	appweb "budget/web"
)

// SubscriptionRunner materializes subscriptions for a month.
type SubscriptionRunner interface {
	ProcessMonth(ctx context.Context, year, month int) (services.ProcessResult, error)
}

// Options tunes the server. Zero values pick defaults.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	SummaryCacheSize   int
	Now                func() time.Time
}

type appMetrics struct {
	started      time.Time
	transactions atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
}

type Server struct {
	http.Server
	logger    *log.Logger
	templates map[string]*template.Template
	store     storage.Store
	runner    SubscriptionRunner
	now       func() time.Time

	summaryCache *cache.LRUCache[cachedSummary]
	summaryGroup singleflight.Group
	cacheManager *cache.Manager
	stopCache    context.CancelFunc

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	appMetrics  appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server. Call Shutdown to stop its background goroutines.
func NewServer(addr string, store storage.Store, runner SubscriptionRunner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.SummaryCacheSize <= 0 {
		opts.SummaryCacheSize = 120
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		logger:       opts.Logger.WithComponent(log.ComponentHTTP),
		store:        store,
		runner:       runner,
		now:          opts.Now,
		summaryCache: cache.NewLRUCache[cachedSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
		tracer:       trace.NewMiddleware(),
	}
	s.appMetrics.started = time.Now()

	var ctx context.Context
	ctx, s.stopCache = context.WithCancel(context.Background())
	s.cacheManager = cache.NewManager(s.summaryCache)
	s.cacheManager.Start(ctx, time.Minute)

	templates, err := parseTemplates()
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = templates

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ClientIP, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = log.Middleware(s.logger, trace.RequestID, s.detector.ClientIP)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /accounts/new", s.page("account_new.html"))
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts/remove", s.handleRemoveAccountForm)
	mux.HandleFunc("POST /accounts/remove", s.handleRemoveAccount)
	mux.HandleFunc("GET /transactions/new", s.handleTransactionForm)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /subscriptions/new", s.handleSubscriptionForm)
	mux.HandleFunc("POST /subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /ui/month-summary", s.handleMonthSummaryPartial)

	mux.HandleFunc("GET /api/summary", s.handleAPISummary)
	mux.HandleFunc("GET /api/balances", s.handleAPIBalances)
	mux.HandleFunc("GET /api/accounts/{name}/projection", s.handleAPIProjection)
	mux.HandleFunc("POST /api/subscriptions/process", s.handleAPIProcessSubscriptions)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60").
		Write(w)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

// cachedSummary remembers the newest transaction the summary could include.
type cachedSummary struct {
	summary  core.Summary
	lastTxID int64
}

// monthlySummary serves a month from cache while no transaction has been
// booked since it was computed, by this server or by another process on the
// same store. Concurrent misses for the same month share one store read.
func (s *Server) monthlySummary(ctx context.Context, year, month int) (core.Summary, error) {
	lastTxID, err := s.store.LastTransactionID(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	key := summaryKey(year, month)
	if cached, ok := s.summaryCache.Get(key); ok && cached.lastTxID == lastTxID {
		s.appMetrics.cacheHits.Add(1)
		return cached.summary, nil
	}
	s.appMetrics.cacheMisses.Add(1)

	v, err, _ := s.summaryGroup.Do(fmt.Sprintf("%s@%d", key, lastTxID), func() (any, error) {
		from, to := core.MonthBounds(year, month)
		transactions, err := s.store.ListTransactions(ctx, from, to)
		if err != nil {
			return core.Summary{}, fmt.Errorf("list transactions: %w", err)
		}
		summary := ledger.MonthlySummary(transactions, year, month)
		// Rows newer than lastTxID only make this entry miss on the next read.
		s.summaryCache.Set(key, cachedSummary{summary: summary, lastTxID: lastTxID})
		return summary, nil
	})
	if err != nil {
		return core.Summary{}, err
	}
	return v.(core.Summary), nil
}

// invalidateMonth drops the cached summary for the month containing d.
func (s *Server) invalidateMonth(d core.Date) {
	s.summaryCache.Delete(summaryKey(d.Year(), d.Month()))
}

// Shutdown stops background goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopCache()
		s.cacheManager.Wait()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
