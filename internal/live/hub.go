// Package live pushes domain events to connected mobile clients over
// websockets: new reports to admins, review results to the reporter,
// leaderboard and event participant changes to everyone.
package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/metrics"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	TypeReportSubmitted    = "report.submitted"
	TypeReportReviewed     = "report.reviewed"
	TypeLeaderboardUpdated = "leaderboard.updated"
	TypeEventParticipants  = "event.participants"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message is one pushed update. The audience fields are not serialized.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`

	adminsOnly bool
	userID     uuid.UUID
}

func Broadcast(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data}
}

func ToAdmins(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data, adminsOnly: true}
}

// ToUserAndAdmins delivers to every session of userID and to all admins.
func ToUserAndAdmins(msgType string, userID uuid.UUID, data interface{}) Message {
	return Message{Type: msgType, Data: data, adminsOnly: true, userID: userID}
}

func (m Message) deliverTo(c *client) bool {
	if !m.adminsOnly {
		return true
	}
	return c.admin || (m.userID != uuid.Nil && c.userID == m.userID)
}

// Publisher is implemented by Hub. Services depend on this so they can run
// without a live server.
type Publisher interface {
	Publish(msg Message)
}

type NopPublisher struct{}

func (NopPublisher) Publish(Message) {}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	admin  bool
}

type Hub struct {
	clients    map[*client]bool
	publish    chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64

	secret   []byte
	cfg      *config.Config
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
}

func NewHub(cfg *config.Config, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		publish:    make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		secret:     []byte(cfg.JWTSecret),
		cfg:        cfg,
		metrics:    m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			slog.Info("live client connected", "user_id", c.userID.String(), "admin", c.admin)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
			}

		case msg := <-h.publish:
			payload, err := json.Marshal(msg)
			if err != nil {
				slog.Error("failed to marshal live message", "type", msg.Type, "error", err)
				continue
			}
			for c := range h.clients {
				if !msg.deliverTo(c) {
					continue
				}
				select {
				case c.send <- payload:
				default:
					delete(h.clients, c)
					close(c.send)
					h.setCount()
				}
			}

		case <-h.done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	h.metrics.SetLiveClients(len(h.clients))
}

// ClientCount reports connected clients as last seen by Run.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Publish never blocks the caller; a full queue drops the message.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		slog.Warn("live publish queue full, dropping message", "type", msg.Type)
	}
}

// ServeHTTP upgrades an authenticated request. The access token comes from
// the "token" query parameter or a Bearer Authorization header.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, admin, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		admin:  admin,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) authenticate(r *http.Request) (uuid.UUID, bool, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if raw == "" {
		return uuid.Nil, false, errors.New("missing token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, false, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid sub claim")
	}
	role, _ := claims["role"].(string)
	email, _ := claims["email"].(string)
	return userID, h.isAdmin(userID, email, role), nil
}

// isAdmin mirrors the HTTP admin gate: the token role or either configured list.
func (h *Hub) isAdmin(userID uuid.UUID, email, role string) bool {
	return role == models.RoleAdmin ||
		h.cfg.IsAdminEmail(email) ||
		h.cfg.IsAdminUserID(userID.String())
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
