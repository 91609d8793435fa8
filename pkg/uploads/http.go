package uploads

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mapdr-ai/platform/pkg/auth"
	"github.com/mapdr-ai/platform/pkg/common/logger"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/uploads", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/uploads/sessions/{session_id}", h.handleStatus).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		logger.Log.WithError(err).Warn("invalid upload payload")
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	req := IntakeRequest{
		PatientType: r.FormValue("patient_type"),
		PatientUUID: r.FormValue("patient_uuid"),
		FullName:    r.FormValue("full_name"),
		DateOfBirth: r.FormValue("date_of_birth"),
	}
	if claims, ok := auth.UserFromContext(r.Context()); ok {
		uid := claims.UserID
		req.UserID = &uid
	}

	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "unreadable file in batch", http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "unreadable file in batch", http.StatusBadRequest)
			return
		}
		req.Files = append(req.Files, BatchFile{Name: header.Filename, Content: content})
	}

	resp, err := h.service.Submit(r.Context(), req)
	if err != nil {
		if IsValidationError(err) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to accept upload batch")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["session_id"]

	status, err := h.service.Status(r.Context(), sessionID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch session status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
