// Event Viewer - live interview and delivery events.
// Consumes the service's Kafka topics and fans them out to browsers over
// WebSocket.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/pflag"
)

// viewerEvent is what browsers receive: the topic plus the raw event.
type viewerEvent struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
}

// Hub manages WebSocket connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan viewerEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan viewerEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client disconnected")

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					log.Warn().Err(err).Msg("Write error")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}
		hub.register <- conn

		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group so several viewers can
	// watch the same topic.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to rewind, reading from the latest offset")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		if !json.Valid(msg.Value) {
			log.Warn().Str("topic", topic).Msg("Skipping non-JSON message")
			continue
		}

		var eventType string
		for _, h := range msg.Headers {
			if h.Key == "eventType" {
				eventType = string(h.Value)
			}
		}
		log.Debug().Str("topic", topic).Str("eventType", eventType).Str("key", string(msg.Key)).Msg("Received")

		select {
		case hub.broadcast <- viewerEvent{Topic: topic, Event: msg.Value}:
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	port := pflag.String("port", "8081", "HTTP server port")
	brokers := pflag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topics := pflag.StringSlice("topics", []string{"interview.events", "interview.deliveries"}, "Topics to watch")
	since := pflag.Duration("since", time.Hour, "Replay events newer than this")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx)

	brokerList := strings.Split(*brokers, ",")
	for _, topic := range *topics {
		go consumeKafka(ctx, hub, brokerList, topic, *since)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/ws", wsHandler(hub))

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("url", "http://localhost:"+*port).Strs("topics", *topics).Msg("Event viewer starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Interview events</title>
<style>
body { font-family: sans-serif; margin: 2em; }
li { margin: .3em 0; font-family: monospace; white-space: pre-wrap; }
.failed, .reply_failed_silent { color: #b00; }
</style>
</head>
<body>
<h1>Interview events</h1>
<ul id="events"></ul>
<script>
const list = document.getElementById("events");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (m) => {
  const { topic, event } = JSON.parse(m.data);
  const li = document.createElement("li");
  li.className = (event.eventType || "").split(".").pop();
  li.textContent = topic + "  " + JSON.stringify(event);
  list.prepend(li);
};
</script>
</body>
</html>
`
