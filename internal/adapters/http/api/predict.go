package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mdobak/go-xerrors"

	"github.com/okian/rfcoverage/internal/adapters/upstream"
	"github.com/okian/rfcoverage/pkg/logger"
)

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, maxBodyBytes int64, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandlePredict handles POST /api/predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
			h.logger.Warn(r.Context(), "predict body rejected", logger.Error(err))
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		err = fmt.Errorf("%w: %w", ErrReadBody, err)
		h.logger.Error(r.Context(), "predict body unreadable", logger.Error(xerrors.New(err)))
		writeReply(w, upstream.ErrorReply(err))
		return
	}

	reply := h.deps.Predict(r.Context(), body)
	h.logger.Info(r.Context(), "predict proxied",
		logger.String("upstream", h.deps.UpstreamName()),
		logger.Int("status", reply.Status),
		logger.Int("bytes_in", len(body)),
	)
	writeReply(w, reply)
}
