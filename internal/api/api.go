package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/config"
	"github.com/susu3304/warikan/internal/warikan"
)

type API struct {
	router  *mux.Router
	warikan *warikan.Service
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

func New(cfg *config.Config, svc *warikan.Service, logger *zap.Logger) *API {
	api := &API{
		router:  mux.NewRouter(),
		warikan: svc,
		config:  cfg,
		logger:  logger,
	}
	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	g := a.router.PathPrefix("/api/groups/{group_id}").Subrouter()
	g.Use(a.logMiddleware)

	g.HandleFunc("/start", a.handleStart).Methods("POST")
	g.HandleFunc("", a.handleStop).Methods("DELETE")

	g.HandleFunc("/members", a.handleListMembers).Methods("GET")
	g.HandleFunc("/members", a.handleAddMembers).Methods("POST")
	g.HandleFunc("/members/{name}", a.handleRemoveMember).Methods("DELETE")

	g.HandleFunc("/drafts", a.handleListDrafts).Methods("GET")
	g.HandleFunc("/drafts", a.handleOpenDraft).Methods("POST")
	g.HandleFunc("/drafts/{draft_id}", a.handleGetDraft).Methods("GET")
	g.HandleFunc("/drafts/{draft_id}", a.handlePatchDraft).Methods("PATCH")
	g.HandleFunc("/drafts/{draft_id}", a.handleDiscardDraft).Methods("DELETE")
	g.HandleFunc("/drafts/{draft_id}/participants", a.handleDraftAddParticipants).Methods("POST")
	g.HandleFunc("/drafts/{draft_id}/participants/remove", a.handleDraftRemoveParticipants).Methods("POST")
	g.HandleFunc("/drafts/{draft_id}/weights", a.handleDraftWeights).Methods("PUT")
	g.HandleFunc("/drafts/{draft_id}/rollback", a.handleDraftRollBack).Methods("POST")
	g.HandleFunc("/drafts/{draft_id}/commit", a.handleCommitDraft).Methods("POST")

	g.HandleFunc("/expenses", a.handleListExpenses).Methods("GET")
	g.HandleFunc("/expenses", a.handleAddExpense).Methods("POST")
	g.HandleFunc("/expenses/undo", a.handleUndoExpense).Methods("POST")
	g.HandleFunc("/expenses/{expense_id}", a.handleRemoveExpense).Methods("DELETE")
	g.HandleFunc("/expenses/{expense_id}/weights", a.handleExpenseWeights).Methods("PUT")
	g.HandleFunc("/expenses/{expense_id}/rollback", a.handleExpenseRollBack).Methods("POST")

	g.HandleFunc("/balances", a.handleBalances).Methods("GET")
	g.HandleFunc("/optimize", a.handleOptimize).Methods("POST")
	g.HandleFunc("/summary/{name}", a.handleSummary).Methods("GET")
	g.HandleFunc("/tasks", a.handleTasks).Methods("GET")
	g.HandleFunc("/tasks/complete", a.handleCompleteTask).Methods("POST")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// wildcard origins must not allow credentials
	allowCredentials := true
	for _, o := range a.config.CORSAllowedOrigins {
		if o == "*" {
			allowCredentials = false
		}
	}
	corsOptions := cors.Options{
		AllowedOrigins:   a.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: allowCredentials,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("api server listening", zap.String("addr", "http://"+a.config.WebBind))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *API) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
