// Package testendpoint runs a mock team recommender endpoint for exercising
// the evaluation pipeline end to end.
package testendpoint

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/recsyscourse/requestor/pkg/logger"
)

// recoResponse mirrors the wire shape the poller expects.
type recoResponse struct {
	UserID int64   `json:"user_id"`
	Items  []int64 `json:"items"`
}

// Server serves /health and /{model_name}/{user_id} the way a registered
// team endpoint would.
type Server struct {
	recoSize    int
	numItems    int64
	latency     time.Duration
	failureRate float64
	apiKey      string
	log         logger.Logger
}

// New creates a mock endpoint server with default configuration.
func New(opts ...Option) *Server {
	s := &Server{
		recoSize: 10,
		numItems: 1000,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("testendpoint")
	}

	return s
}

// Handler returns the HTTP handler for the mock endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRecos)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleRecos answers GET /{model_name}/{user_id} with a deterministic
// distinct item list, so repeated runs produce identical metrics.
func (s *Server) handleRecos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	if s.failureRate > 0 && rand.Float64() < s.failureRate {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	items := make([]int64, s.recoSize)
	for i := range items {
		items[i] = (userID + int64(i)) % s.numItems
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(recoResponse{UserID: userID, Items: items})

	s.log.Debug(r.Context(), "served recommendations",
		logger.String("model", parts[0]),
		logger.Int("user_id", int(userID)))
}

func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.apiKey
}
