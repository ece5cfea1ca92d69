package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rryowa/storefront/internal/util"
)

type invalidationEvent struct {
	Event     string `json:"event"`
	SignInURL string `json:"sign_in_url"`
	Reason    string `json:"reason"`
	At        string `json:"at"`
}

// Prints session_invalidated notifications sent by the storefront client.
func main() {
	logger := util.NewZapLogger(util.LogLevel())

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is accepted", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusInternalServerError)
			return
		}
		defer r.Body.Close()

		var ev invalidationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "Error parsing JSON", http.StatusBadRequest)
			return
		}

		logger.Infow("Received webhook",
			"event", ev.Event,
			"sign_in_url", ev.SignInURL,
			"reason", ev.Reason,
			"at", ev.At,
		)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook received!"))
	})

	logger.Info("Webhook receiver listening on :9090")
	if err := http.ListenAndServe(":9090", nil); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
