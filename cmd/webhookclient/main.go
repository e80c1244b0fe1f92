package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	server := pflag.String("server", "http://localhost:8080", "Interview assistant base URL")
	channel := pflag.String("channel", "whatsapp", "whatsapp or messenger")
	verifyToken := pflag.String("verify-token", "", "Run the subscription handshake with this token first")
	sender := pflag.String("from", "15551234567", "Sender id or phone number")
	text := pflag.String("text", "What is a container?", "Message text")
	messageID := pflag.String("id", "", "Message id, random when empty")
	repeat := pflag.Int("repeat", 1, "Deliver the same message this many times")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	base := strings.TrimRight(*server, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	if *verifyToken != "" {
		q := url.Values{
			"hub.mode":         {"subscribe"},
			"hub.verify_token": {*verifyToken},
			"hub.challenge":    {"1158201444"},
		}
		resp, err := client.Get(base + "/webhook?" + q.Encode())
		if err != nil {
			log.Fatal().Err(err).Msg("Verification request failed")
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Info().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(body))).Msg("Verification")
	}

	id := *messageID
	if id == "" {
		id = "test." + uuid.NewString()
	}

	var payload any
	switch *channel {
	case "whatsapp":
		payload = whatsappText(id, *sender, *text)
	case "messenger":
		payload = messengerText(id, *sender, *text)
	default:
		log.Fatal().Str("channel", *channel).Msg("Unknown channel")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode payload")
	}

	for i := 0; i < *repeat; i++ {
		resp, err := client.Post(base+"/webhook", "application/json", bytes.NewReader(raw))
		if err != nil {
			log.Fatal().Err(err).Msg("Delivery failed")
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Info().
			Int("attempt", i+1).
			Str("messageId", id).
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(body))).
			Msg("Delivered webhook")
	}
	fmt.Println(id)
}

func whatsappText(id, from, text string) map[string]any {
	return map[string]any{
		"object": "whatsapp_business_account",
		"entry": []any{map[string]any{
			"id": "WABA_ID",
			"changes": []any{map[string]any{
				"field": "messages",
				"value": map[string]any{
					"messaging_product": "whatsapp",
					"metadata":          map[string]any{"phone_number_id": "PHONE_NUMBER_ID"},
					"messages": []any{map[string]any{
						"from":      from,
						"id":        id,
						"timestamp": fmt.Sprint(time.Now().Unix()),
						"type":      "text",
						"text":      map[string]any{"body": text},
					}},
				},
			}},
		}},
	}
}

func messengerText(id, from, text string) map[string]any {
	return map[string]any{
		"object": "page",
		"entry": []any{map[string]any{
			"id":   "PAGE_ID",
			"time": time.Now().UnixMilli(),
			"messaging": []any{map[string]any{
				"sender":    map[string]any{"id": from},
				"recipient": map[string]any{"id": "PAGE_ID"},
				"timestamp": time.Now().UnixMilli(),
				"message":   map[string]any{"mid": id, "text": text},
			}},
		}},
	}
}
