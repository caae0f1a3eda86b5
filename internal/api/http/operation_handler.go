package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/service"
	"khazna-backend/internal/storage"
)

const maxMultipartMemory = 8 << 20

type OperationHandler struct {
	ops   service.OperationService
	files storage.Storage
}

func NewOperationHandler(ops service.OperationService, files storage.Storage) *OperationHandler {
	return &OperationHandler{ops: ops, files: files}
}

type createOperationRequest struct {
	CarCode    string             `json:"car_code"`
	DriverCode string             `json:"driver_code"`
	Kind       domain.ServiceKind `json:"kind"`
}

type completeOtherRequest struct {
	ServiceID int32           `json:"service_id"`
	Cost      decimal.Decimal `json:"cost"`
}

func (h *OperationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createOperationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := h.ops.Create(r.Context(), actor, service.CreateOperationRequest{
		CarCode:    req.CarCode,
		DriverCode: req.DriverCode,
		Kind:       req.Kind,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, start)
}

func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ops, err := h.ops.ListActive(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ops == nil {
		ops = []domain.CarOperation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	op, err := h.ops.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// parseForm accepts a multipart body; any other body is treated as empty.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return true
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_body", "صيغة الطلب غير صحيحة")
		return false
	}
	return true
}

// savePhoto stores the uploaded form file and returns its key, or "" when the
// field was not sent.
func (h *OperationHandler) savePhoto(ctx context.Context, r *http.Request, operationID int64, formField, kind string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile(formField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	ext, err := storage.ExtensionFor(header.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	key := storage.PhotoKey(operationID, kind, ext)
	if _, err := h.files.Save(ctx, key, file); err != nil {
		return "", err
	}
	return key, nil
}

// discard removes a photo stored for a request the service then rejected.
func (h *OperationHandler) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.files.Delete(ctx, key); err != nil {
		logger.Warn("Failed to remove rejected upload", "key", key, "error", err)
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, field string, err error) {
	switch {
	case errors.Is(err, storage.ErrUnsupportedContent):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: errorBody{
			Code: "unsupported_content_type", Message: "نوع الملف غير مدعوم", Field: field,
		}})
	case errors.Is(err, storage.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errorBody{
			Code: "file_too_large", Message: "حجم الملف أكبر من المسموح", Field: field,
		}})
	default:
		writeError(w, r, err)
	}
}

func (h *OperationHandler) Advance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	if !parseForm(w, r) {
		return
	}

	var req service.AdvanceRequest
	if raw := r.FormValue("meter"); raw != "" {
		meter, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badParam(w, "meter")
			return
		}
		req.Meter = &meter
	}
	key, err := h.savePhoto(r.Context(), r, id, "meter_photo", storage.FieldMeter)
	if err != nil {
		writeUploadError(w, r, "meter_photo", err)
		return
	}
	req.MeterPhoto = key

	op, err := h.ops.Advance(r.Context(), actor, id, req)
	if err != nil {
		h.discard(r.Context(), key)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *OperationHandler) CompleteFuel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	if !parseForm(w, r) {
		return
	}

	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil {
		badParam(w, "amount")
		return
	}
	key, err := h.savePhoto(r.Context(), r, id, "pump_photo", storage.FieldPump)
	if err != nil {
		writeUploadError(w, r, "pump_photo", err)
		return
	}

	op, err := h.ops.CompleteFuel(r.Context(), actor, id, service.CompleteFuelRequest{Amount: amount, PumpPhoto: key})
	if err != nil {
		h.discard(r.Context(), key)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *OperationHandler) CompleteOther(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req completeOtherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	op, err := h.ops.CompleteOther(r.Context(), actor, id, service.CompleteOtherRequest{
		ServiceID: req.ServiceID,
		Cost:      req.Cost,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *OperationHandler) Abort(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	if err := h.ops.Abort(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
