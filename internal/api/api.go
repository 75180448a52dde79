package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/config"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/lib/jwt"
)

// Ledger is the business-logic surface the HTTP layer exposes.
type Ledger interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Transfer(ctx context.Context, fromUserID int64, toUsername string, amount int64, note string) (*models.Transaction, *models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, search string, opts models.ListOptions) (*models.Listing[models.User], error)
	ListTransactions(ctx context.Context, userID int64, opts models.ListOptions) (*models.Listing[models.Transaction], error)
	TransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	ledger    Ledger
	jwtSecret []byte
}

func New(config *config.Config, logger *slog.Logger, ledger Ledger, jwtSecret []byte) *APIServer {
	return &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:         config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		ledger:    ledger,
		jwtSecret: jwtSecret,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	s.configureRouter()

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.Use(s.logRequest, metricsMiddleware)
	router.HandleFunc("/", s.healthHandler()).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api/auth/login", s.loginHandler()).Methods("POST")
	router.HandleFunc("/api/users", s.listUsersHandler()).Methods("GET")
	router.HandleFunc("/api/users/{id}", s.userHandler()).Methods("GET")
	router.HandleFunc("/api/transactions/transfer", s.authenticate(s.transferHandler())).Methods("POST")
	router.HandleFunc("/api/transactions", s.listTransactionsHandler()).Methods("GET")
	router.HandleFunc("/api/transactions/{id}", s.transactionHandler()).Methods("GET")
	router.HandleFunc("/api/stats", s.statsHandler()).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
	s.server.Handler = router
}

type contextKey string

const usernameKey contextKey = "username"

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			writeError(w, http.StatusUnauthorized, "Thiếu token xác thực")
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Định dạng token không hợp lệ")
			return
		}

		claims, err := jwt.ParseToken(parts[1], string(s.jwtSecret))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token không hợp lệ")
			return
		}

		username, ok := claims["username"].(string)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token không hợp lệ")
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), usernameKey, username))
		next(w, r)
	}
}

func (s *APIServer) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)),
		)
	})
}
