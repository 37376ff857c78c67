// Package server exposes the client's operational endpoints: Prometheus metrics and a
// health probe of the wallet session.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

const probeTimeout = 2 * time.Second

type Server struct {
	session    *wallet.Session
	httpServer *http.Server
	log        zerolog.Logger
}

func NewServer(addr string, metrics http.Handler, session *wallet.Session, log zerolog.Logger) *Server {
	s := &Server{
		session: session,
		log:     log.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/metrics", metrics)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("status endpoints listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type rpcHealth struct {
	Connected   bool    `json:"connected"`
	BlockNumber uint64  `json:"block_number,omitempty"`
	LatencyMs   float64 `json:"latency_ms"`
	Error       string  `json:"error,omitempty"`
}

type walletHealth struct {
	Connected  bool   `json:"connected"`
	Account    string `json:"account,omitempty"`
	CanSign    bool   `json:"can_sign"`
	Generation uint64 `json:"generation"`
}

// handleHealth reports degraded when no wallet is connected or the node does not answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	walletInfo := walletHealth{Connected: st.Connected, Generation: st.Generation}

	rpcInfo := rpcHealth{}
	conn := s.session.Current()
	if conn != nil {
		walletInfo.Account = st.Account.Hex()
		walletInfo.CanSign = conn.CanSign()

		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		header, err := probe(ctx, conn)
		if err != nil {
			rpcInfo.Error = err.Error()
		} else {
			rpcInfo.Connected = true
			rpcInfo.BlockNumber = header
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Error = "wallet not connected"
	}

	healthy := walletInfo.Connected && rpcInfo.Connected
	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	resp := struct {
		Status string       `json:"status"`
		RPC    rpcHealth    `json:"rpc"`
		Wallet walletHealth `json:"wallet"`
	}{
		Status: status,
		RPC:    rpcInfo,
		Wallet: walletInfo,
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func probe(ctx context.Context, conn *wallet.Connection) (uint64, error) {
	backend := conn.Backend()
	if backend == nil {
		return 0, wallet.ErrNotConnected
	}
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	if header == nil || header.Number == nil {
		return 0, fmt.Errorf("node returned no head block")
	}
	return header.Number.Uint64(), nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		w.Header().Set("X-Request-Id", r.Header.Get("X-Request-Id"))
		next.ServeHTTP(w, r)
	})
}
