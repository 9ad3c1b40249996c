package rewardd

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenmile/native/rewards"
	"greenmile/services/rewardd/models"
)

// Server exposes the distribution API and operator controls.
type Server struct {
	processor  *Processor
	calculator *rewards.Calculator
	records    *Records
	adminToken string

	router http.Handler
}

// NewServer constructs the configured HTTP router.
func NewServer(processor *Processor, calculator *rewards.Calculator, records *Records, adminToken string) *Server {
	srv := &Server{
		processor:  processor,
		calculator: calculator,
		records:    records,
		adminToken: adminToken,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/distribute", s.handleDistribute)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.requireBearer)
		admin.Post("/pause", s.handlePause)
		admin.Post("/resume", s.handleResume)
		admin.Get("/reconciliation", s.handleReconciliation)
	})

	return r
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.Header.Get("Authorization")
		expected := "Bearer " + s.adminToken
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.processor.Status())
}

type distributeRequest struct {
	EventID          string  `json:"event_id"`
	Recipient        string  `json:"recipient"`
	ReceiptAmountUSD float64 `json:"receipt_amount_usd"`
	Category         string  `json:"category"`
	PaymentMethod    string  `json:"payment_method"`
	CardLastFour     string  `json:"card_last_four"`
	ProofReference   string  `json:"proof_reference"`
	AchievementType  string  `json:"achievement_type"`
	WeeklyStreak     int     `json:"weekly_streak"`
	MonthlyComplete  bool    `json:"monthly_complete"`
}

type distributeResponse struct {
	EventID         string `json:"event_id"`
	Status          string `json:"status"`
	GrossReward     string `json:"gross_reward"`
	UserShare       string `json:"user_share"`
	PlatformShare   string `json:"platform_share"`
	UserTxHash      string `json:"user_tx_hash,omitempty"`
	PlatformTxHash  string `json:"platform_tx_hash,omitempty"`
	CO2SavingsGrams int64  `json:"co2_savings_grams"`
	Sponsored       bool   `json:"sponsored"`
	SponsorReason   string `json:"sponsor_reason"`
	SponsorMessage  string `json:"sponsor_message"`
	Degraded        bool   `json:"degraded,omitempty"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event := rewards.RewardEvent{
		EventID:          req.EventID,
		Recipient:        req.Recipient,
		ReceiptAmountUSD: req.ReceiptAmountUSD,
		Category:         rewards.Category(req.Category),
		PaymentMethod:    rewards.PaymentMethod(req.PaymentMethod),
		CardLastFour:     req.CardLastFour,
		ProofReference:   req.ProofReference,
	}
	if err := event.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var gross rewards.Units
	if event.Category == rewards.CategoryAchievement {
		reward, ok := rewards.AchievementReward(rewards.Achievement(req.AchievementType))
		if !ok {
			http.Error(w, "unknown achievement type", http.StatusBadRequest)
			return
		}
		gross = reward
	} else {
		streak := rewards.StreakInfo{
			WeeklyStreakCount:     req.WeeklyStreak,
			MonthlyStreakComplete: req.MonthlyComplete,
		}
		gross = s.calculator.ComputeGrossReward(event.ReceiptAmountUSD, streak, event.PaymentMethod, event.CardLastFour)
	}
	if gross <= 0 {
		http.Error(w, "event yields no reward", http.StatusUnprocessableEntity)
		return
	}

	result, err := s.processor.Distribute(r.Context(), DistributionRequest{
		EventID:          event.EventID,
		Recipient:        event.Recipient,
		Gross:            gross,
		ProofReference:   event.ProofReference,
		Category:         event.Category,
		ReceiptAmountUSD: event.ReceiptAmountUSD,
	})
	if err != nil {
		writeDistributeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, distributeResponse{
		EventID:         result.EventID,
		Status:          string(result.Status),
		GrossReward:     gross.String(),
		UserShare:       result.UserShare.String(),
		PlatformShare:   result.PlatformShare.String(),
		UserTxHash:      result.UserTxHash,
		PlatformTxHash:  result.PlatformTxHash,
		CO2SavingsGrams: result.CO2SavingsGrams,
		Sponsored:       result.Sponsoring.ShouldSponsor,
		SponsorReason:   string(result.Sponsoring.Reason),
		SponsorMessage:  result.Sponsoring.Message,
		Degraded:        result.Degraded,
	})
}

func writeDistributeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProcessorPaused):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, ErrInsufficientTreasury):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrTreasuryUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, ErrDistributionInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, rewards.ErrMissingEventID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.processor.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.processor.Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeJSON(w, http.StatusOK, []models.DistributionRecord{})
		return
	}
	records, err := s.records.PartiallyFailed(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.DistributionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
