package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/models"
)

const (
	objectWhatsApp  = "whatsapp_business_account"
	objectMessenger = "page"
)

// ErrUnsupportedObject is returned for webhook envelopes from products
// other than WhatsApp and Messenger.
var ErrUnsupportedObject = errors.New("unsupported webhook object")

type envelope struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string           `json:"id"`
	Changes   []waChange       `json:"changes"`
	Messaging []messengerEvent `json:"messaging"`
}

type waChange struct {
	Field string  `json:"field"`
	Value waValue `json:"value"`
}

type waValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []waMessage `json:"messages"`
}

type waMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Audio *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"audio"`
}

type messengerEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
}

// Normalize turns a WhatsApp or Messenger webhook body into inbound events.
// Messages the service cannot answer (statuses, echoes, images, stickers)
// are skipped. Events keep an empty MessageID when the platform sent none;
// the router drops those.
func Normalize(raw []byte) ([]models.InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}

	switch env.Object {
	case objectWhatsApp:
		return normalizeWhatsApp(env), nil
	case objectMessenger:
		return normalizeMessenger(env), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObject, env.Object)
	}
}

func normalizeWhatsApp(env envelope) []models.InboundEvent {
	var out []models.InboundEvent
	for _, e := range env.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				ev := models.InboundEvent{
					MessageID:     m.ID,
					Channel:       models.ChannelWhatsApp,
					SenderID:      m.From,
					PhoneNumberID: ch.Value.Metadata.PhoneNumberID,
				}
				switch {
				case m.Type == "text" && m.Text != nil:
					body := m.Text.Body
					ev.Text = &body
				case m.Type == "audio" && m.Audio != nil && m.Audio.ID != "":
					ev.Audio = &models.AudioRef{MediaID: m.Audio.ID, MimeType: m.Audio.MimeType}
				default:
					log.Debug().Str("messageId", m.ID).Str("type", m.Type).Msg("Skipping unsupported WhatsApp message")
					continue
				}
				out = append(out, ev)
			}
		}
	}
	return out
}

func normalizeMessenger(env envelope) []models.InboundEvent {
	var out []models.InboundEvent
	for _, e := range env.Entry {
		for _, m := range e.Messaging {
			if m.Message == nil {
				continue
			}
			if m.Message.IsEcho {
				log.Debug().Str("messageId", m.Message.MID).Msg("Skipping Messenger echo")
				continue
			}
			ev := models.InboundEvent{
				MessageID: m.Message.MID,
				Channel:   models.ChannelMessenger,
				SenderID:  m.Sender.ID,
			}
			if m.Message.Text != "" {
				text := m.Message.Text
				ev.Text = &text
				out = append(out, ev)
				continue
			}
			for _, a := range m.Message.Attachments {
				if a.Type == "audio" && a.Payload.URL != "" {
					ev.Audio = &models.AudioRef{URL: a.Payload.URL}
					break
				}
			}
			if ev.Audio == nil {
				log.Debug().Str("messageId", m.Message.MID).Msg("Skipping Messenger message without text or audio")
				continue
			}
			out = append(out, ev)
		}
	}
	return out
}
