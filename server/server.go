// Package server exposes payment requests over HTTP: merchants create and
// confirm payments, wallets fetch the transaction for a transaction request URL.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/store"
	"github.com/TrippyLeaf/solana-pay/types"
)

// PaymentService is the subset of the facade the handlers need.
type PaymentService interface {
	BuildTransaction(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*solana.Transaction, error)
	FindReference(ctx context.Context, reference solana.PublicKey) (*types.SignatureInfo, error)
	ValidateTransfer(ctx context.Context, sig solana.Signature, intent *types.PaymentIntent) (*types.VerificationResult, error)
	Network() types.Network
}

// Server wires the HTTP routes to a PaymentService and a payment store.
type Server struct {
	payments PaymentService
	store    *store.Store
	config   types.ServerConfig
	logger   logger.Logger
	metrics  http.Handler
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New builds the router. BaseURL in config is the public origin wallets use
// to reach /pay/:id; without it no transaction request URLs are issued.
func New(payments PaymentService, st *store.Store, config types.ServerConfig, opts ...Option) *Server {
	s := &Server{
		payments: payments,
		store:    st,
		config:   config,
		logger:   logger.NoopLogger{},
	}
	s.config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "network": s.payments.Network().String()})
	})

	r.POST("/payments", s.createPayment)
	r.GET("/payments/:id", s.getPayment)
	r.GET("/payments/:id/qr", s.getPaymentQR)
	r.POST("/payments/:id/confirm", s.confirmPayment)

	// Transaction request endpoint, fetched by wallets.
	r.GET("/pay/:id", s.describeTransaction)
	r.POST("/pay/:id", s.createTransaction)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// statusFor maps module errors onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	var spErr *types.SolanaPayError
	if !errors.As(err, &spErr) {
		return http.StatusInternalServerError
	}
	switch spErr.Code {
	case types.ErrCodeNetwork:
		return http.StatusBadGateway
	case types.ErrCodeConfig, types.ErrCodeSettlement:
		return http.StatusInternalServerError
	case types.ErrCodeReferenceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var spErr *types.SolanaPayError
	if errors.As(err, &spErr) {
		body["code"] = spErr.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
	}
	c.AbortWithStatusJSON(status, body)
}
