package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/app"
)

// verifySignature checks the X-Hub-Signature-256 header against an
// HMAC-SHA256 of the raw body. An empty secret disables verification.
func verifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// waWebhookPayload is the WhatsApp Cloud API webhook envelope, trimmed to
// the fields we consume.
type waWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []waMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// parseWhatsApp extracts inbound messages from a WhatsApp webhook body.
// Status updates and unsupported message types yield no messages.
func parseWhatsApp(body []byte) ([]app.InboundMessage, error) {
	var payload waWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding whatsapp payload: %w", err)
	}
	var out []app.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				msg := app.InboundMessage{FromPhone: m.From}
				switch m.Type {
				case "text":
					msg.Text = m.Text.Body
				case "interactive":
					switch m.Interactive.Type {
					case "button_reply":
						msg.InteractiveReplyID = m.Interactive.ButtonReply.ID
						msg.Text = m.Interactive.ButtonReply.Title
					case "list_reply":
						msg.InteractiveReplyID = m.Interactive.ListReply.ID
						msg.Text = m.Interactive.ListReply.Title
					default:
						continue
					}
				default:
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out, nil
}

// chatwootPayload is the Chatwoot message_created webhook, trimmed to the
// fields we consume. Chatwoot is an inbound-only channel here.
type chatwootPayload struct {
	Event       string `json:"event"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
	Sender      struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"sender"`
}

// parseChatwoot extracts the inbound message from a Chatwoot webhook body.
// Outgoing echoes and non-message events yield no messages.
func parseChatwoot(body []byte) ([]app.InboundMessage, error) {
	var payload chatwootPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding chatwoot payload: %w", err)
	}
	if payload.Event != "message_created" || payload.MessageType != "incoming" {
		return nil, nil
	}
	phone := strings.TrimPrefix(payload.Sender.PhoneNumber, "+")
	if phone == "" || payload.Content == "" {
		return nil, nil
	}
	return []app.InboundMessage{{FromPhone: phone, Text: payload.Content}}, nil
}
