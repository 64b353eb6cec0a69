package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/internal/logging"
	"github.com/bikebill/authcore/middleware"
)

const maxBodyBytes = 16 << 10

type registerRequest struct {
	Identity string `json:"identity"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type confirmRequest struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type sessionResponse struct {
	SubjectID    string    `json:"subject_id"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Verification string    `json:"verification,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type identityResponse struct {
	SubjectID string    `json:"subject_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type healthResponse struct {
	Status              string `json:"status"`
	RateLimiterDegraded bool   `json:"rate_limiter_degraded"`
}

func (h *handler) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Status:              "ok",
		RateLimiterDegraded: h.engine.RateLimiterDegraded(),
	})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	sess, ticket, err := h.engine.Register(r.Context(), authcore.RegisterInput{
		Identity: req.Identity,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	resp := newSessionResponse(sess)
	if ticket != nil {
		resp.Verification = string(ticket.Status)
		if ticket.Status == authcore.VerificationIssued {
			h.sendTicket(r.Context(), sess.SubjectID, ticket)
		}
	}

	http.SetCookie(w, sess.RefreshCookie)
	middleware.WriteJSON(w, http.StatusCreated, resp)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.engine.Login(r.Context(), req.Identity, req.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	http.SetCookie(w, sess.RefreshCookie)
	middleware.WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Refresh(r.Context(), h.engine.RefreshTokenFromRequest(r))
	if err != nil {
		if errors.Is(err, authcore.ErrInvalidToken) {
			http.SetCookie(w, h.engine.ClearRefreshCookie())
		}
		h.fail(w, r, "refresh", err)
		return
	}

	http.SetCookie(w, sess.RefreshCookie)
	middleware.WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := h.engine.Logout(r.Context(), h.engine.RefreshTokenFromRequest(r))
	if err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	http.SetCookie(w, cookie)
	middleware.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}

	status, err := h.engine.ConfirmEmail(r.Context(), req.Identity, req.Token)
	if err != nil {
		h.fail(w, r, "confirm email", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}

/*
====================================
GUARDED ROUTES
====================================
*/

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, identityResponse{
		SubjectID: id.SubjectID,
		IssuedAt:  id.IssuedAt,
		ExpiresAt: id.ExpiresAt,
	})
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.DeleteAccount(r.Context(), id.SubjectID); err != nil {
		h.fail(w, r, "delete account", err)
		return
	}
	http.SetCookie(w, h.engine.ClearRefreshCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), id.SubjectID, req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, r, "change password", err)
		return
	}
	http.SetCookie(w, h.engine.ClearRefreshCookie())
	middleware.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	ticket, err := h.engine.IssueVerification(r.Context(), id.SubjectID)
	if err != nil {
		h.fail(w, r, "issue verification", err)
		return
	}
	if ticket.Status == authcore.VerificationIssued {
		h.sendTicket(r.Context(), id.SubjectID, ticket)
	}
	middleware.WriteJSON(w, http.StatusAccepted, statusResponse{Status: string(ticket.Status)})
}

/*
====================================
HELPERS
====================================
*/

func (h *handler) sendTicket(ctx context.Context, subjectID string, ticket *authcore.VerificationTicket) {
	if err := h.deliver(ctx, subjectID, ticket); err != nil {
		h.log(ctx).Warn("verification delivery failed",
			slog.String("subject_id", subjectID),
			slog.Any("error", err),
		)
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if authcore.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log(r.Context()).Error(op+" failed", slog.Any("error", err))
	}
	middleware.WriteError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, authcore.ErrInvalidInput)
		return false
	}
	return true
}

func newSessionResponse(sess *authcore.Session) sessionResponse {
	return sessionResponse{
		SubjectID:   sess.SubjectID,
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   sess.AccessExpiresAt,
	}
}
