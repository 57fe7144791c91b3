package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/mikroscope/sidecar/internal/ingest"
)

func (d *Deps) handleIngest(w http.ResponseWriter, r *http.Request) {
	producerID, status := resolveProducerID(r, d.Auth)
	if status == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "ingest disabled: no producer auth configured")
		return
	}
	if status != http.StatusOK {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds ingest size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := d.Pipeline.Accept(r.Context(), producerID, body)
	if err != nil {
		var shapeErr *ingest.ErrPayloadShape
		if errors.As(err, &shapeErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d.logger().Error("httpapi: ingest failed", "producer", producerID, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}

	respStatus := http.StatusOK
	if result.Queued {
		respStatus = http.StatusAccepted
	}
	writeJSON(w, respStatus, result)
}
