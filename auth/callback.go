package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// Resumer settles a mutation parked behind a co-signer dispatch.
type Resumer interface {
	Resume(ctx context.Context, correlationID string, signatures []string, declined bool, reason string) error
}

// CallbackHandler decodes the co-signer's redirect return and feeds it to the
// resumer. Mount it on the host application's HTTP server.
type CallbackHandler struct {
	resumer Resumer
	log     *logger.Logger
}

// NewCallbackHandler creates a callback handler.
func NewCallbackHandler(resumer Resumer, log *logger.Logger) *CallbackHandler {
	if log == nil {
		log = logger.Default("cosigner-callback")
	}
	return &CallbackHandler{resumer: resumer, log: log}
}

// Router returns the callback route.
func (h *CallbackHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/cosigner/callback/{correlation_id}", h.handleCallback).Methods(http.MethodPost)
	return r
}

// callbackBody is the co-signer's return payload.
type callbackBody struct {
	Signatures []string `json:"signatures,omitempty"`
	Declined   bool     `json:"declined,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func (h *CallbackHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	correlationID := mux.Vars(r)["correlation_id"]
	if correlationID == "" {
		http.Error(w, "correlation id required", http.StatusBadRequest)
		return
	}

	var body callbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed callback body", http.StatusBadRequest)
		return
	}
	if !body.Declined && len(body.Signatures) == 0 {
		http.Error(w, "signatures required unless declined", http.StatusBadRequest)
		return
	}

	if err := h.resumer.Resume(r.Context(), correlationID, body.Signatures, body.Declined, body.Reason); err != nil {
		h.log.WithContext(r.Context()).WithError(err).WithFields(logger.Fields{
			"correlation_id": correlationID,
		}).Warn("co-signer resume failed")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
