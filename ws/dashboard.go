package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // chỉ để phát triển, nên giới hạn ở production
	},
}

// Command là message client gửi lên để đổi view của dashboard.
type Command struct {
	Type      string            `json:"type"`
	Search    string            `json:"search"`
	Filters   store.FilterPatch `json:"filters"`
	SortBy    store.SortField   `json:"sort_by"`
	SortOrder store.SortOrder   `json:"sort_order"`
	Page      int               `json:"page"`
}

type pageMessage struct {
	Type string     `json:"type"`
	View store.View `json:"view"`
	Page store.Page `json:"page"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// session là trạng thái view riêng của một kết nối dashboard.
type session struct {
	cache    *store.Cache
	client   *Client
	debounce *store.Debouncer
	log      *zap.Logger

	mu     sync.Mutex
	view   store.View
	closed bool
}

func (s *session) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("ws marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.client.Send <- data:
	default:
		s.log.Warn("ws client buffer full, page dropped")
	}
}

func (s *session) pushPage() {
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()
	s.send(pageMessage{Type: "page", View: view, Page: s.cache.Page(view)})
}

func (s *session) pushError(err error) {
	s.send(errorMessage{Type: "error", Error: err.Error()})
}

func (s *session) close() {
	s.debounce.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *session) handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case "set_search":
		s.mu.Lock()
		s.view.SetSearchQuery(cmd.Search)
		s.mu.Unlock()
		s.debounce.Trigger(s.pushPage)
		return
	case "set_filters":
		s.mu.Lock()
		s.view.SetFilters(cmd.Filters)
		s.mu.Unlock()
	case "set_sort":
		s.mu.Lock()
		if cmd.SortBy != "" {
			s.view.SetSortBy(cmd.SortBy)
		}
		if cmd.SortOrder != "" {
			s.view.SetSortOrder(cmd.SortOrder)
		}
		s.mu.Unlock()
	case "set_page":
		s.mu.Lock()
		s.view.SetCurrentPage(cmd.Page)
		s.mu.Unlock()
	case "refresh":
		if err := s.cache.Refresh(ctx); err != nil {
			s.pushError(err)
			return
		}
	case "get_page":
	default:
		s.send(errorMessage{Type: "error", Error: "Lệnh không hợp lệ: " + cmd.Type})
		return
	}
	s.pushPage()
}

// HandleDashboard mở WebSocket cho trang danh sách khoá học. Mỗi kết nối có
// view riêng (tìm kiếm, lọc, sắp xếp, trang) và nhận broadcast khi dữ liệu đổi.
func HandleDashboard(hub *Hub, cache *store.Cache, itemsPerPage int, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Thiếu token"})
			return
		}
		claims, err := utils.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token không hợp lệ hoặc hết hạn"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("WebSocket upgrade thất bại", zap.Error(err))
			return
		}
		log.Info("Dashboard WS connected", zap.String("user_id", claims.UserID))

		s := &session{
			cache:    cache,
			client:   hub.Register(conn),
			debounce: store.NewDebouncer(store.SearchDebounce),
			log:      log,
			view:     store.NewView(itemsPerPage),
		}
		defer func() {
			s.close()
			hub.Unregister(conn)
			log.Info("Dashboard WS disconnected", zap.String("user_id", claims.UserID))
		}()

		ctx := c.Request.Context()
		if _, err := cache.Initialize(ctx); err != nil {
			s.pushError(err)
		}
		s.pushPage()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.send(errorMessage{Type: "error", Error: "Message không hợp lệ"})
				continue
			}
			s.handle(ctx, cmd)
		}
	}
}
