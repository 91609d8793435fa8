package aireport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
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
	router.HandleFunc("/models", h.handleListModels).Methods(http.MethodGet)
	router.HandleFunc("/predictions", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/predictions/file", h.handlePredictFile).Methods(http.MethodPost)
	router.HandleFunc("/reviews", h.handleReview).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list models")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models)
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StudyInstanceUID == "" || req.SeriesInstanceUID == "" || req.SOPInstanceUID == "" || req.ModelID == uuid.Nil {
		http.Error(w, "studyInstanceUID, seriesInstanceUID, sopInstanceUID and modelId are required", http.StatusBadRequest)
		return
	}
	if req.FrameNumber < 0 {
		http.Error(w, "frameNumber must not be negative", http.StatusBadRequest)
		return
	}

	report, err := h.service.PredictInstance(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrInstanceUnknown):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			logger.Log.WithError(err).Error("prediction failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *HTTPHandler) handlePredictFile(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	modelID, err := uuid.Parse(r.FormValue("modelId"))
	if err != nil {
		http.Error(w, "modelId required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("imageFile")
	if err != nil {
		http.Error(w, "imageFile required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "unreadable imageFile", http.StatusBadRequest)
		return
	}

	prediction, err := h.service.PredictFile(r.Context(), modelID, imageBytes)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("file prediction failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prediction)
}

func (h *HTTPHandler) handleReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if claims, ok := auth.UserFromContext(r.Context()); ok {
		uid := claims.UserID
		req.UserID = &uid
	}

	review, err := h.service.CreateReview(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReview):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrReportNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			logger.Log.WithError(err).Error("review creation failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(review)
}
