package api

import (
	"net/http"
	"strings"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// VerificationsHandler submits and polls asynchronous coverage checks.
type VerificationsHandler struct {
	deps Dependencies
}

// NewVerificationsHandler creates a new verifications handler.
func NewVerificationsHandler(deps Dependencies) *VerificationsHandler {
	return &VerificationsHandler{deps: deps}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// HandleSubmit handles POST /verifications. Bad input is reported here;
// the check itself runs in the background.
func (h *VerificationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_verification"
	var req model.VerifyRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	id, err := h.deps.SubmitVerification(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/verifications/"+id)
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id, Status: "accepted"})
}

// HandlePoll handles GET /verifications/{id}.
func (h *VerificationsHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	const op = "api.poll_verification"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	job, err := h.deps.PollVerification(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
