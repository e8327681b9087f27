package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"guardian/internal/authz"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/netutil"
)

func (h *Handler) clientIP(r *http.Request) string {
	return netutil.ClientIP(r, h.opts.TrustProxy)
}

// decode reads a JSON body capped at 1 MiB.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, r, "body", "malformed JSON: "+err.Error())
		return false
	}
	return true
}

// upload returns the bytes of one multipart file field.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large", Code: "too_large"})
			return nil, false
		}
		badRequest(w, r, field, "multipart form required")
		return nil, false
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		badRequest(w, r, field, "file is required")
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if len(data) == 0 {
		badRequest(w, r, field, "file is empty")
		return nil, false
	}
	return data, true
}

func principal(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	p, err := authz.FromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return authz.Principal{}, false
	}
	return p, true
}

// ---- auth ----

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Accounts.Signup(r.Context(), req, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Accounts.Login(r.Context(), req, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Tokens.Refresh(r.Context(), req.RefreshToken, h.clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Accounts.Logout(r.Context(), p.AccountID, req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- account ----

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Accounts.Get(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.UpdateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Accounts.Update(r.Context(), p.AccountID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Accounts.Delete(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) setProfileImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	data, ok := h.upload(w, r, "Image")
	if !ok {
		return
	}
	res, err := h.svc.Accounts.SetProfileImage(r.Context(), p.AccountID, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- pairing ----

func (h *Handler) claimChild(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.PairingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Pairing.Claim(r.Context(), p.AccountID, req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) releaseChild(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.PairingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Pairing.Release(r.Context(), p.AccountID, req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Usage.Children(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) childSelf(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Pairing.Self(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- usage ----

func (h *Handler) ingestUsage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var batch dto.UsageBatch
	if !decode(w, r, &batch) {
		return
	}
	res, err := h.svc.Usage.Ingest(r.Context(), p.AccountID, batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) childUsage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	childID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("child")))
	if err != nil {
		badRequest(w, r, "child", "child account id required")
		return
	}
	res, err := h.svc.Usage.ForChild(r.Context(), p.AccountID, childID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) setAppIcon(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	data, ok := h.upload(w, r, "Image")
	if !ok {
		return
	}
	res, err := h.svc.Usage.SetIcon(r.Context(), p.AccountID, r.FormValue("app"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- screening ----

func (h *Handler) screen(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	data, ok := h.upload(w, r, "file")
	if !ok {
		return
	}
	res, err := h.svc.Screening.Analyze(r.Context(), p.AccountID, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- captures and inbox ----

func (h *Handler) listCaptures(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Inbox.Captures(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// captureImage streams a flagged screenshot to a parent of the child it was
// taken from.
func (h *Handler) captureImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "id", "invalid capture id")
		return
	}
	file, err := h.svc.Inbox.CaptureImage(r.Context(), p.AccountID, domain.CaptureID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeFile(w, r, file)
}

func (h *Handler) deleteCapture(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "id", "invalid capture id")
		return
	}
	if err := h.svc.Inbox.DeleteCapture(r.Context(), p.AccountID, domain.CaptureID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fetchInbox(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Inbox.Fetch(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) unreadInbox(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Inbox.Unread(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ackInbox(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.AckRequest
	if !decode(w, r, &req) {
		return
	}
	ids := make([]domain.MessageID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			badRequest(w, r, "ids", "invalid message id "+raw)
			return
		}
		ids = append(ids, id)
	}
	n, err := h.svc.Inbox.Ack(r.Context(), p.AccountID, ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AckResponse{Marked: n})
}
