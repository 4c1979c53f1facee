package http

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/infra/logging"
	"bigdaytimer-premium/internal/infra/metrics"
	rstore "bigdaytimer-premium/internal/infra/redis"
	"bigdaytimer-premium/internal/usecase"
)

const maxWebhookBody = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type statusResponse struct {
	UserID       string     `json:"userId"`
	IsPremium    bool       `json:"isPremium"`
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
	OrderID      string     `json:"orderId,omitempty"`
	LastChecked  string     `json:"lastChecked"`
}

type statusErrorResponse struct {
	Error     string `json:"error"`
	UserID    string `json:"userId"`
	IsPremium bool   `json:"isPremium"`
}

type checkoutRequest struct {
	UserID    string `json:"userId" validate:"required"`
	Plan      string `json:"plan"`
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	UserID      string `json:"userId"`
	Plan        string `json:"plan"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   s.cfg.Service.Name,
		Version:   s.cfg.Service.Version,
		Timestamp: s.timestamp(),
	})
}

func (s *Server) handleMissingUserID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing userId parameter"})
}

func (s *Server) handlePremiumStatus(w http.ResponseWriter, r *http.Request) {
	s.serveStatus(w, r, false)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	s.serveStatus(w, r, true)
}

// serveStatus answers both status routes; withPayment adds purchaseDate and
// orderId. Store failures still say isPremium=false.
func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request, withPayment bool) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		s.handleMissingUserID(w, r)
		return
	}
	ctx := logging.WithUserID(r.Context(), logging.Redact(userID, s.cfg.Runtime.Dev))

	view, err := s.statusUC.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid userId parameter"})
			return
		}
		msg := "Failed to check premium status"
		if withPayment {
			msg = "Failed to check payment status"
		}
		writeJSON(w, http.StatusInternalServerError, statusErrorResponse{Error: msg, UserID: userID})
		return
	}

	resp := statusResponse{UserID: userID, IsPremium: view.IsPremium, LastChecked: s.timestamp()}
	if withPayment {
		resp.PurchaseDate = view.PurchaseDate
		resp.OrderID = view.OrderID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	if s.limiter != nil && s.cfg.HTTP.CheckoutRateLimit > 0 {
		ok, err := s.limiter.Allow(ctx, rstore.CheckoutKey(clientIP(r)), s.cfg.HTTP.CheckoutRateLimit, time.Minute)
		if err != nil {
			// limiter outage must not block purchases
			log.Warn().Err(err).Msg("checkout rate limiter unavailable")
		} else if !ok {
			metrics.IncCheckout("unknown", "unknown", "rate_limited")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many requests"})
			return
		}
	}

	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validationMessage(err)})
		return
	}

	res, err := s.checkoutUC.Create(ctx, usecase.CheckoutRequest{
		UserID:    req.UserID,
		Plan:      req.Plan,
		ReturnURL: req.ReturnURL,
		Email:     req.Email,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: invalidCheckoutMessage(err)})
			return
		}
		msg := err.Error()
		var perr *domain.ProviderError
		if errors.As(err, &perr) && perr.Message != "" {
			msg = perr.Message
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to create checkout session", Message: msg})
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		CheckoutURL: res.CheckoutURL,
		UserID:      res.UserID,
		Plan:        string(res.Plan),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	switch fe := verrs[0]; {
	case fe.Field() == "UserID" && fe.Tag() == "required":
		return "Missing userId"
	default:
		return "Invalid " + fe.Field()
	}
}

// invalidCheckoutMessage maps the checkout use case's rejections onto the
// messages clients already match on.
func invalidCheckoutMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingUserID):
		return "Missing userId"
	case errors.Is(err, model.ErrUserIDTooLong):
		return "Invalid userId"
	case errors.Is(err, model.ErrUnknownPlan):
		return "Invalid plan"
	default:
		return err.Error()
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		return
	}
	if len(body) > maxWebhookBody {
		http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	_, err = s.webhookUC.Handle(r.Context(), body, r.Header.Get("X-Paddle-Signature"), r.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "Invalid signature", http.StatusForbidden)
	case err != nil:
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
