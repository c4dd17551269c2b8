package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leafsii/jsredis/pkg/jsredis"
	"github.com/leafsii/jsredis/pkg/kv"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	client *jsredis.Client
	store  kv.Store
	logger *zap.SugaredLogger
}

func NewHandler(client *jsredis.Client, store kv.Store, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		client: client,
		store:  store,
		logger: logger,
	}
}

// Item endpoints
func (h *Handler) PutItem(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	exp, ok := h.parseExpires(w, r.URL.Query().Get("expires"))
	if !ok {
		return
	}

	value, err := decodeValue(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	if err := h.client.Items.Set(r.Context(), key, value, exp...); err != nil {
		h.writeOpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	raw, ok, err := jsredis.Get[json.RawMessage](r.Context(), h.client.Items, key)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no item at %q", key))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (h *Handler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "at least one key is required")
		return
	}

	n, err := h.client.Items.Delete(r.Context(), keys...)
	if err != nil {
		h.writeOpError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, DeletedDTO{Deleted: n})
}

// Set membership endpoints
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	setKey := chi.URLParam(r, "set")

	req, member, ok := h.decodeMemberRequest(w, r)
	if !ok {
		return
	}
	exp, ok := h.parseExpires(w, req.Expires)
	if !ok {
		return
	}

	if err := h.client.Sets.Add(r.Context(), setKey, member, exp...); err != nil {
		h.writeOpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CheckMember(w http.ResponseWriter, r *http.Request) {
	setKey := chi.URLParam(r, "set")

	_, member, ok := h.decodeMemberRequest(w, r)
	if !ok {
		return
	}

	isMember, err := h.client.Sets.IsMember(r.Context(), setKey, member)
	if err != nil {
		h.writeOpError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MembershipDTO{Member: isMember})
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	setKey := chi.URLParam(r, "set")

	_, member, ok := h.decodeMemberRequest(w, r)
	if !ok {
		return
	}

	n, err := h.client.Sets.Remove(r.Context(), setKey, member)
	if err != nil {
		h.writeOpError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RemovedDTO{Removed: n})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	setKey := chi.URLParam(r, "set")

	members, err := jsredis.Members[json.RawMessage](r.Context(), h.client.Sets, setKey)
	if err != nil {
		h.writeOpError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MembersDTO{Members: members})
}

func (h *Handler) PurgeSet(w http.ResponseWriter, r *http.Request) {
	setKey := chi.URLParam(r, "set")

	n, err := h.client.Sets.Purge(r.Context(), setKey)
	if err != nil {
		h.writeOpError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PurgeDTO{Expired: n})
}

// Health endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
		return
	}

	dto := ReadyDTO{Status: "ready"}
	if fs, ok := h.store.(*kv.FailoverStore); ok {
		dto.Backend = fs.GetActiveBackend()
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// decodeValue reads exactly one JSON value. Numbers are kept as json.Number
// so they are stored with their literal form.
func decodeValue(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("request body must contain a single JSON value")
	}
	return value, nil
}

func (h *Handler) decodeMemberRequest(w http.ResponseWriter, r *http.Request) (MemberRequest, any, bool) {
	var req MemberRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", fmt.Sprintf("invalid JSON: %v", err))
		return req, nil, false
	}
	if len(req.Member) == 0 {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "member is required")
		return req, nil, false
	}

	member, err := decodeValue(bytes.NewReader(req.Member))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return req, nil, false
	}
	return req, member, true
}

func (h *Handler) parseExpires(w http.ResponseWriter, raw string) ([]jsredis.Expiration, bool) {
	if raw == "" {
		return nil, true
	}

	exp, err := jsredis.ParseExpiration(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_EXPIRATION", err.Error())
		return nil, false
	}
	return []jsredis.Expiration{exp}, true
}

// writeOpError maps jsredis errors onto HTTP statuses
func (h *Handler) writeOpError(w http.ResponseWriter, err error) {
	var (
		encErr   *jsredis.EncodingError
		decErr   *jsredis.DecodingError
		storeErr *jsredis.StoreError
	)

	switch {
	case errors.Is(err, jsredis.ErrExpirationRange):
		h.writeError(w, http.StatusBadRequest, "INVALID_EXPIRATION", err.Error())
	case errors.As(err, &encErr):
		h.writeError(w, http.StatusBadRequest, "ENCODING_ERROR", err.Error())
	case errors.As(err, &decErr):
		h.writeError(w, http.StatusUnprocessableEntity, "DECODING_ERROR", err.Error())
	case errors.Is(err, kv.ErrInvalidTTL):
		h.writeError(w, http.StatusBadRequest, "INVALID_EXPIRATION", err.Error())
	case errors.Is(err, kv.ErrBackendUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
	case errors.As(err, &storeErr):
		h.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
