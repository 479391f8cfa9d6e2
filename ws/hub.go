package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBuffer = 256

var courseListChanged = []byte(`{"type":"course_list_changed"}`)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub giữ các kết nối dashboard để broadcast khi danh sách khoá học thay đổi.
type Hub struct {
	Clients map[*websocket.Conn]*Client
	Mutex   sync.RWMutex
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{Clients: make(map[*websocket.Conn]*Client), log: log}
}

// Register thêm kết nối và chạy write pump cho nó.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}

	h.Mutex.Lock()
	h.Clients[conn] = client
	h.Mutex.Unlock()

	go h.writePump(client)
	return client
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if client, ok := h.Clients[conn]; ok {
		close(client.Send)
		delete(h.Clients, conn)
	}
}

// Broadcast gửi tới mọi client; client nào đầy buffer thì bỏ qua message.
func (h *Hub) Broadcast(data []byte) {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	for _, client := range h.Clients {
		select {
		case client.Send <- data:
		default:
			h.log.Warn("ws client buffer full, message dropped")
		}
	}
}

// BroadcastCourseListChanged báo cho các dashboard tải lại danh sách.
func (h *Hub) BroadcastCourseListChanged() {
	h.Broadcast(courseListChanged)
}

func (h *Hub) Len() int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	return len(h.Clients)
}

func (h *Hub) writePump(client *Client) {
	conn := client.Conn
	defer func() {
		conn.WriteMessage(websocket.CloseMessage, []byte{})
		conn.Close()
	}()
	for msg := range client.Send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			break
		}
	}
}
