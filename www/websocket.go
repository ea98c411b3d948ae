package www

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// pushMessage is what subscribers receive after every refresh cycle: the
// household, the snapshot's provenance and the freshly derived analytics.
type pushMessage struct {
	Type      string          `json:"type"`
	Household types.Household `json:"household"`
	Status    string          `json:"status"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Warning   string          `json:"warning,omitempty"`
	Report    optimize.Report `json:"report"`
}

func newPushMessage(household types.Household, snap coordinator.Snapshot, report optimize.Report) pushMessage {
	return pushMessage{
		Type:      "snapshot",
		Household: household,
		Status:    string(snap.Freshness),
		FetchedAt: snap.FetchedAt,
		Warning:   snap.Warning,
		Report:    report,
	}
}

type Client struct {
	logger *slog.Logger
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	name   string
}

func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, name string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger: hub.logger.With(slog.String("client", name)),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		name:   name,
	}, nil
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(ws.CloseMessage, []byte{})
				return
			}
			if err := c.write(ws.TextMessage, message); err != nil {
				c.logger.Warn("push failed, dropping client", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := c.write(ws.PingMessage, nil); err != nil {
				c.logger.Warn("ping failed, dropping client", slog.Any("error", err))
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}

// Hub fans refreshed analytics out to the connected websocket clients. Each
// push is marshalled once and delivered to every client; a client that cannot
// keep up has messages dropped rather than slowing the rest.
type Hub struct {
	Broadcast  chan pushMessage
	Register   chan *Client
	Unregister chan *Client
	clients    map[*Client]bool
	mutex      sync.Mutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Broadcast:  make(chan pushMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.logger.Debug("registering client", "clientName", client.name)

			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

		case client := <-h.Unregister:
			h.logger.Debug("unregistering client", "clientName", client.name)

			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			payload, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("marshalling push message",
					slog.String("household", message.Household.ID), slog.Any("error", err))
				continue
			}

			h.mutex.Lock()
			activeClients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				activeClients = append(activeClients, client)
			}
			h.mutex.Unlock()

			for _, client := range activeClients {
				select {
				case client.send <- payload:
				default:
					h.logger.Warn("client send buffer full, dropping message", "clientName", client.name)
				}
			}
		}
	}
}
