// Package stripetest поднимает поддельный Stripe API для тестов: списания и OAuth Connect.
package stripetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v76"
)

const (
	// ConnectedAccount - аккаунт, который возвращает обмен кода авторизации.
	ConnectedAccount = "acct_connected"
	// RejectedCode - код авторизации, который сервер не принимает.
	RejectedCode = "ac_rejected"
)

// Call - принятый сервером запрос.
type Call struct {
	Form    url.Values
	Account string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	charges  []Call
	tokens   []Call
	declined bool
}

func NewServer() *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Backends направляет клиент stripe-go на этот сервер.
func (s *Server) Backends() *stripe.Backends {
	config := func() *stripe.BackendConfig {
		return &stripe.BackendConfig{
			URL:               stripe.String(s.URL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, config()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, config()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, config()),
	}
}

// DeclineCards включает отказ по карте для следующих списаний.
func (s *Server) DeclineCards(declined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined = declined
}

func (s *Server) Charges() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.charges...)
}

func (s *Server) Tokens() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.tokens...)
}

// StripeFee - комиссия, которую сервер берёт за списание: 2.9% + 30 центов.
func StripeFee(amount int64) int64 {
	return amount*29/1000 + 30
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError("invalid_request_error", "", err.Error()))
		return
	}
	call := Call{Form: r.Form, Account: r.Header.Get("Stripe-Account")}

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/charges"):
		s.charge(w, call)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/oauth/token"):
		s.token(w, call)
	default:
		writeJSON(w, http.StatusNotFound, apiError("invalid_request_error", "", "unknown path "+r.URL.Path))
	}
}

func (s *Server) charge(w http.ResponseWriter, call Call) {
	s.mu.Lock()
	s.charges = append(s.charges, call)
	n, declined := len(s.charges), s.declined
	s.mu.Unlock()

	if declined {
		writeJSON(w, http.StatusPaymentRequired, apiError("card_error", "card_declined", "Your card was declined."))
		return
	}

	amount, _ := strconv.ParseInt(call.Form.Get("amount"), 10, 64)
	appFee, _ := strconv.ParseInt(call.Form.Get("application_fee_amount"), 10, 64)
	currency := call.Form.Get("currency")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       fmt.Sprintf("ch_test_%d", n),
		"object":   "charge",
		"amount":   amount,
		"currency": currency,
		"paid":     true,
		"status":   "succeeded",
		"balance_transaction": map[string]interface{}{
			"id":     fmt.Sprintf("txn_test_%d", n),
			"object": "balance_transaction",
			"amount": amount,
			"fee":    StripeFee(amount) + appFee,
			"fee_details": []map[string]interface{}{
				{"amount": StripeFee(amount), "currency": currency, "type": "stripe_fee"},
				{"amount": appFee, "currency": currency, "type": "application_fee"},
			},
		},
	})
}

func (s *Server) token(w http.ResponseWriter, call Call) {
	s.mu.Lock()
	s.tokens = append(s.tokens, call)
	s.mu.Unlock()

	if call.Form.Get("code") == RejectedCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Authorization code does not exist: " + RejectedCode,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":           "sk_test_connected",
		"livemode":               false,
		"refresh_token":          "rt_test",
		"scope":                  "read_write",
		"stripe_publishable_key": "pk_test_connected",
		"stripe_user_id":         ConnectedAccount,
		"token_type":             "bearer",
	})
}

func apiError(typ, code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{"type": typ, "code": code, "message": message},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
