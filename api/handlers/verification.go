package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/mailer"
	templates "github.com/formgate/formgate-api/templates/html"
	"github.com/formgate/formgate-api/verification"
)

// Verification handles the applicant-facing email verification flow. The
// store owns all state transitions; this layer only translates outcomes to
// HTTP and fires the code email in the background.
type Verification struct {
	Store  verification.Store
	Sender mailer.Sender
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

// RequestCodeHandler issues a fresh verification code and emails it
func (v Verification) RequestCodeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var requestBody verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, fmt.Errorf("email is required"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	code, err := v.Store.RequestCode(ctx, requestBody.Email)
	if err != nil {
		var rle *verification.RateLimitError
		if errors.As(err, &rle) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":             "a code was issued recently",
				"retryAfterSeconds": rle.RetryAfterSeconds(),
			})
			return
		}
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}

	// Email delivery never blocks or fails the request; the code stays valid
	// either way and the applicant can re-request after the cooldown.
	mailer.SendInBackground(v.Sender, mailer.Message{
		ToEmail:   verification.Normalize(requestBody.Email),
		Subject:   "Your FormGate verification code",
		PlainText: "Verification code: " + code + ". This code will expire in 10 minutes.",
		HTMLBody:  templates.RenderCode(code),
	})

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"issued": true}`))
}

// ConfirmCodeHandler checks a submitted code and marks the address verified
func (v Verification) ConfirmCodeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var requestBody verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Email == "" || requestBody.Code == "" {
		config.ErrorStatus("email and code are required", http.StatusBadRequest, w, fmt.Errorf("email and code are required"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	err := v.Store.ConfirmCode(ctx, requestBody.Email, requestBody.Code)
	if err != nil {
		reason := ""
		switch {
		case errors.Is(err, verification.ErrNotFound):
			reason = "NotFound"
		case errors.Is(err, verification.ErrExpired):
			reason = "Expired"
		case errors.Is(err, verification.ErrMismatch):
			reason = "Mismatch"
		default:
			config.ErrorStatus("failed to confirm verification code", http.StatusInternalServerError, w, err)
			return
		}
		zap.S().Debugw("code confirmation rejected", "reason", reason)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"reason": reason})
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"verified": true}`))
}

// StatusHandler reports whether the address is currently verified without
// consuming the verification
func (v Verification) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var requestBody verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, fmt.Errorf("email is required"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	verified, err := v.Store.CheckVerified(ctx, requestBody.Email)
	if err != nil {
		config.ErrorStatus("failed to check verification status", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"verified": verified})
}
