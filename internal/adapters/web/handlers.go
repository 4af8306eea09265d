// Package web exposes the HTTP surface: the Meta webhook verification
// handshake, the webhook receiver for WhatsApp and Chatwoot events, and a
// health endpoint.
package web

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/app"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Config carries the webhook credentials.
type Config struct {
	// VerifyToken answers Meta's GET subscription handshake.
	VerifyToken string
	// AppSecret signs webhook deliveries; empty disables verification.
	AppSecret string
}

// Handler wires the chi router around the message router.
type Handler struct {
	router *app.Router
	cfg    Config
	log    *logrus.Logger
}

func NewHandler(router *app.Router, cfg Config, log *logrus.Logger) http.Handler {
	h := &Handler{router: router, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(RequestBodyLimit(maxWebhookBody))

	r.Get("/health", h.health)
	r.Get("/webhook", h.verifyWebhook)
	r.Post("/webhook", h.receiveWebhook)
	r.Post("/webhook/chatwoot", h.receiveChatwoot)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// verifyWebhook answers the hub.challenge handshake Meta sends when the
// webhook URL is registered.
func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.cfg.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	writeError(w, r, "verification failed", "VERIFY_FAILED", http.StatusForbidden)
}

// receiveWebhook handles WhatsApp Cloud API deliveries. It always answers
// 200 for well-formed authenticated requests so Meta does not re-deliver;
// handler failures are logged and surfaced to the user via the outbox.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, "unreadable body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if !verifySignature(h.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		writeError(w, r, "invalid signature", "INVALID_SIGNATURE", http.StatusUnauthorized)
		return
	}

	msgs, err := parseWhatsApp(body)
	if err != nil {
		writeError(w, r, "malformed payload", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	h.dispatch(r, msgs)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) receiveChatwoot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, "unreadable body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	msgs, err := parseChatwoot(body)
	if err != nil {
		writeError(w, r, "malformed payload", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	h.dispatch(r, msgs)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) dispatch(r *http.Request, msgs []app.InboundMessage) {
	for _, msg := range msgs {
		if err := h.router.HandleInbound(r.Context(), msg); err != nil {
			h.log.WithError(err).WithField("from", msg.FromPhone).Error("inbound handling failed")
		}
	}
}
