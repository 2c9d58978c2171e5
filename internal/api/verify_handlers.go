package api

import (
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

type verifyRequest struct {
	Email    string `json:"email"`
	SendTest bool   `json:"send_test,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Content  string `json:"content,omitempty"`
}

type verifyResponse struct {
	Email    string              `json:"email"`
	Valid    bool                `json:"valid"`
	Reason   string              `json:"reason,omitempty"`
	TestSend *domain.SendOutcome `json:"test_send,omitempty"`
}

// HandleVerify checks an address against the validation rules and can
// optionally fire a real test send to it. Test sends are flagged so they
// never pollute campaign analytics.
//
//	POST /api/verify
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	resp := verifyResponse{Email: req.Email, Valid: domain.ValidEmail(req.Email)}
	if !resp.Valid {
		resp.Reason = "address does not match the accepted format"
		respondJSON(w, http.StatusOK, resp)
		return
	}

	if req.SendTest {
		if h.dispatcher == nil {
			respondError(w, http.StatusServiceUnavailable, "email sending is not configured")
			return
		}

		subject := req.Subject
		if subject == "" {
			subject = "Test email"
		}
		content := req.Content
		if content == "" {
			content = "<p>This is a test email confirming your sending configuration works.</p>"
		}

		result, err := h.dispatcher.Dispatch(r.Context(), worker.DispatchRequest{
			Recipients:  []string{req.Email},
			Subject:     subject,
			HTMLContent: content,
			IsTest:      true,
		})
		if err != nil {
			h.respondDispatchError(w, err)
			return
		}
		if len(result.Outcomes) == 1 {
			resp.TestSend = &result.Outcomes[0]
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
