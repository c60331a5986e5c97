// bus.go — 视图广播: Hub 是 engine 的本地显示, 经 EventBus 推给 SSE / WebSocket 客户端。
package panel

import (
	"sync"

	"github.com/google/uuid"

	"github.com/BxNxM/even-dev/internal/surface"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

const subscriberBuffer = 32

// 事件类型。
const (
	EventView = "view"
	EventLink = "link"
	EventPing = "ping"
)

// Event 推送事件。
type Event struct {
	Type string
	Data any
}

// EventBus 进程内广播; 慢订阅者丢消息而不是阻塞发布方。
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	limit       int
}

// NewEventBus limit <= 0 表示不限。
func NewEventBus(limit int) *EventBus {
	return &EventBus{subscribers: make(map[string]chan Event), limit: limit}
}

// Publish 广播。
func (b *EventBus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe 分配 uuid 订阅者 ID; 超过上限返回 ErrInvalidInput (code too_many_clients)。
func (b *EventBus) Subscribe() (string, <-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && len(b.subscribers) >= b.limit {
		return "", nil, pkgerr.WithCode(pkgerr.ErrInvalidInput, "EventBus.Subscribe", "too_many_clients", "subscriber limit reached")
	}
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch
	return id, ch, nil
}

// Unsubscribe 取消订阅。不关闭 channel, 读方通过自身 ctx 退出。
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Len 当前订阅数。
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ========================================
// Hub
// ========================================

// Hub 实现 surface.LocalDisplay: 保存最新视图并广播。
type Hub struct {
	bus *EventBus

	mu     sync.RWMutex
	latest surface.PanelView
	shows  int
}

// NewHub 创建 Hub; maxClients 同时限制 SSE 与 WebSocket 客户端总数。
func NewHub(maxClients int) *Hub {
	return &Hub{bus: NewEventBus(maxClients)}
}

// Bus 事件总线。
func (h *Hub) Bus() *EventBus { return h.bus }

// Show 实现 surface.LocalDisplay。
func (h *Hub) Show(v surface.PanelView) {
	h.mu.Lock()
	h.latest = v
	h.shows++
	h.mu.Unlock()
	h.bus.Publish(Event{Type: EventView, Data: v})
}

// PublishLinkStatus 推送 bridge 链路巡检快照。
func (h *Hub) PublishLinkStatus(snapshot any) {
	h.bus.Publish(Event{Type: EventLink, Data: snapshot})
}

// Latest 最近一次显示的视图; 尚未显示过时 ok=false。
func (h *Hub) Latest() (surface.PanelView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.shows > 0
}
