package network

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/thrylos-labs/posseal/node"
	"go.uber.org/zap"
)

// Router exposes a node over HTTP.
type Router struct {
	node   *node.Node
	logger *zap.Logger
}

func NewRouter(n *node.Node, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{node: n, logger: logger}
}

// SetupRoutes configures the HTTP routes.
func (router *Router) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(router.middlewareHandler())

	r.HandleFunc("/status", router.handleStatus).Methods("GET")

	r.HandleFunc("/validators", router.handleGetValidators).Methods("GET")
	r.HandleFunc("/validators", router.handleRegisterValidator).Methods("POST")

	r.HandleFunc("/blocks", router.handleGetBlocks).Methods("GET")
	r.HandleFunc("/blocks/{hash:[0-9a-fA-F]+}", router.handleGetBlock).Methods("GET")
	r.HandleFunc("/seal", router.handleSeal).Methods("POST")

	r.HandleFunc("/balance/{address}", router.handleGetBalance).Methods("GET")
	r.HandleFunc("/transactions", router.handleSubmitTransaction).Methods("POST")
	r.HandleFunc("/transactions/pending", router.handlePendingTransactions).Methods("GET")
	r.HandleFunc("/validate", router.handleValidate).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(router.node.Gatherer(), promhttp.HandlerOpts{})).Methods("GET")

	return r
}

// Handler wraps the routes in CORS for the configured origins.
func (router *Router) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router.SetupRoutes())
}

func (router *Router) middlewareHandler() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			router.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
