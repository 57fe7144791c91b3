package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func (d *Deps) handleGetAlertConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"configPath": d.Alerting.ConfigPath,
		"policy":     d.Alerting.Policy(),
	})
}

func (d *Deps) handlePutAlertConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := d.Alerting.UpdatePolicy(r.Context(), patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"configPath": d.Alerting.ConfigPath,
		"policy":     updated,
	})
}

// testWebhookAllowedFields is the only field test-webhook's body accepts;
// any other top-level key is a validation error.
var testWebhookAllowedFields = map[string]bool{"webhookUrl": true}

func (d *Deps) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var override *string
	if len(body) > 0 {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		for key := range raw {
			if !testWebhookAllowedFields[key] {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", key))
				return
			}
		}
		if v, ok := raw["webhookUrl"]; ok {
			if err := json.Unmarshal(v, &override); err != nil {
				writeError(w, http.StatusBadRequest, "webhookUrl must be a string or null")
				return
			}
		}
	}

	sentAt, targetURL, err := d.Alerting.TestWebhook(r.Context(), override)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"sentAt":    sentAt,
		"targetUrl": targetURL,
	})
}
