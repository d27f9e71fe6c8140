package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"shopdirect.dev/internal/audit"
	"shopdirect.dev/internal/auth"
	"shopdirect.dev/internal/obs"
	"shopdirect.dev/internal/upload"
)

// uploadRoles may submit artifacts. Everyone else gets a 403 from the
// permission evaluator, ownership does not apply here.
var uploadRoles = []string{"admin", "uploader"}

type uploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// handleUpload streams the request body through the validator and, on
// success, persists the artifact under its safe filename.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.opts.Evaluator.RequireRole(principal, uploadRoles, "upload_artifact").Err(); err != nil {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	meta := upload.Declared{
		Filename:    r.Header.Get("X-Filename"),
		ContentType: r.Header.Get("Content-Type"),
		Size:        declaredSize(r),
	}

	artifact, err := a.opts.Validator.Validate(r.Context(), r.Body, meta)
	if err != nil {
		reason := upload.RejectionReason(err)
		obs.IncUploadRejection(reason)
		a.auditUploadRejection(principal, meta, reason)
		writeError(w, uploadStatus(err), uploadMessage(err))
		return
	}

	if _, err := a.opts.Blobs.Save(r.Context(), artifact.SafeFilename, artifact.Content); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Filename: artifact.SafeFilename,
		Size:     artifact.Size,
		Type:     artifact.MIME,
	})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	// Admins may read anyone, owners may read themselves.
	if err := a.opts.Evaluator.RequireRoleOrOwnership(principal, []string{"admin"}, id, "read_user").Err(); err != nil {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	user, err := a.opts.Store.Users(r.Context()).Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Email: user.Email,
		Roles: user.Roles,
	})
}

// auditUploadRejection records the client's full claim alongside the
// rejection so forged declarations are visible in the trail.
func (a *API) auditUploadRejection(principal auth.Principal, meta upload.Declared, reason string) {
	a.opts.Sink.Emit(audit.Event{
		PrincipalID: principal.ID,
		Action:      "upload_artifact",
		Decision:    "deny",
		Reason:      reason,
		Fields: map[string]any{
			"filename":      meta.Filename,
			"declared_type": meta.ContentType,
		},
	})
}

func declaredSize(r *http.Request) int64 {
	if v := r.Header.Get("X-Declared-Size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return r.ContentLength
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrExtensionNotAllowed),
		errors.Is(err, upload.ErrContentTypeNotAllowed),
		errors.Is(err, upload.ErrTypeMismatch):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, upload.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// uploadMessage maps validation failures to stable, safe messages. The
// sniffed details stay in the audit trail.
func uploadMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return "file exceeds the maximum allowed size"
	case errors.Is(err, upload.ErrExtensionNotAllowed):
		return "file extension is not allowed"
	case errors.Is(err, upload.ErrContentTypeNotAllowed):
		return "file type is not allowed"
	case errors.Is(err, upload.ErrTypeMismatch):
		return "file content does not match its declared type"
	case errors.Is(err, upload.ErrInvalidInput):
		return "invalid upload"
	default:
		return "upload rejected"
	}
}
