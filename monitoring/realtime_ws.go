package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType 消息类型
type MessageType string

const (
	PredictionEvent MessageType = "prediction"
	PredictionError MessageType = "prediction_error"
	ReloadEvent     MessageType = "reload"
	SystemStatus    MessageType = "system_status"
	Heartbeat       MessageType = "heartbeat"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	clientQueueSize = 256
)

// Message 监控消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// Client WebSocket客户端
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string

	mu            sync.RWMutex
	subscriptions map[MessageType]bool // 为空时接收全部类型
}

func (c *Client) wants(msgType MessageType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[msgType]
}

type outbound struct {
	msgType MessageType
	payload []byte
}

// WebSocketHub WebSocket中心
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	welcome    func() []byte
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWebSocketHub 创建WebSocket中心
func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 运行WebSocket中心，直到 Stop 被调用
func (h *WebSocketHub) Run() {
	defer h.logger.Info("websocket hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			if h.welcome != nil {
				if payload := h.welcome(); payload != nil {
					client.send <- payload
				}
			}
			h.logger.Info("monitor client connected", zap.String("client_id", client.clientID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client disconnected", zap.String("client_id", client.clientID), zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(message.msgType) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					// 慢客户端直接断开
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止WebSocket中心
func (h *WebSocketHub) Stop() {
	h.cancel()
}

// ClientCount 返回当前连接数
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 处理WebSocket连接
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, clientQueueSize),
		clientID:      uuid.NewString(),
		subscriptions: make(map[MessageType]bool),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump(h.logger)
	go client.readPump(h)
}

// Broadcast 广播消息，队列满时丢弃
func (h *WebSocketHub) Broadcast(msgType MessageType, payload []byte) {
	select {
	case h.broadcast <- outbound{msgType: msgType, payload: payload}:
	default:
		h.logger.Warn("websocket broadcast queue is full, dropping message", zap.String("type", string(msgType)))
	}
}

// writePump WebSocket写入泵
func (c *Client) writePump(logger *zap.Logger) {
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
				logger.Debug("websocket write failed", zap.String("client_id", c.clientID), zap.Error(err))
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

// readPump WebSocket读取泵
func (c *Client) readPump(h *WebSocketHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid client message", zap.String("client_id", c.clientID), zap.Error(err))
			continue
		}
		c.handleClientMessage(msg)
	}
}

// handleClientMessage 处理订阅请求
func (c *Client) handleClientMessage(msg ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case "subscribe":
		c.subscriptions[msg.Topic] = true
	case "unsubscribe":
		delete(c.subscriptions, msg.Topic)
	}
}

// RealtimeMonitor 实时监控器，把预测与重载事件推送给 WebSocket 客户端
type RealtimeMonitor struct {
	hub       *WebSocketHub
	heartbeat time.Duration
	logger    *zap.Logger

	mu        sync.RWMutex
	running   bool
	stop      chan struct{}
	stats     MonitorStats
	startTime time.Time
}

// MonitorStats 监控统计
type MonitorStats struct {
	ConnectedClients int64         `json:"connected_clients"`
	MessagesSent     int64         `json:"messages_sent"`
	StartTime        time.Time     `json:"start_time"`
	LastMessageTime  time.Time     `json:"last_message_time"`
	Uptime           time.Duration `json:"uptime"`
}

// NewRealtimeMonitor 创建实时监控器；heartbeat 不大于 0 时不发送心跳
func NewRealtimeMonitor(heartbeat time.Duration, logger *zap.Logger) *RealtimeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &RealtimeMonitor{
		hub:       NewWebSocketHub(logger),
		heartbeat: heartbeat,
		logger:    logger,
	}
	m.hub.welcome = m.welcomeMessage
	return m
}

// Start 启动监控器
func (m *RealtimeMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("monitor is already running")
	}

	go m.hub.Run()
	m.running = true
	m.startTime = time.Now()
	m.stats.StartTime = m.startTime
	m.stop = make(chan struct{})
	if m.heartbeat > 0 {
		go m.heartbeatLoop(m.stop)
	}

	m.logger.Info("realtime monitor started", zap.Duration("heartbeat", m.heartbeat))
	return nil
}

// Stop 停止监控器
func (m *RealtimeMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return errors.New("monitor is not running")
	}

	m.running = false
	close(m.stop)
	m.hub.Stop()
	m.logger.Info("realtime monitor stopped")
	return nil
}

// HandleWebSocket 处理 /ws/monitor 连接
func (m *RealtimeMonitor) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !m.isRunning() {
		http.Error(w, "monitor is not running", http.StatusServiceUnavailable)
		return
	}
	m.hub.HandleWebSocket(w, r)
}

// SendPrediction 推送一次成功预测
func (m *RealtimeMonitor) SendPrediction(event PredictionMessage) error {
	return m.send(PredictionEvent, event)
}

// SendError 推送一次失败预测
func (m *RealtimeMonitor) SendError(event ErrorMessage) error {
	return m.send(PredictionError, event)
}

// SendReload 推送一次模型重载结果
func (m *RealtimeMonitor) SendReload(event ReloadMessage) error {
	return m.send(ReloadEvent, event)
}

// SendHeartbeat 发送心跳
func (m *RealtimeMonitor) SendHeartbeat() error {
	return m.send(Heartbeat, HeartbeatMessage{Timestamp: time.Now(), Status: "alive"})
}

// GetStats 获取监控统计
func (m *RealtimeMonitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.stats
	if m.running {
		stats.Uptime = time.Since(m.startTime)
	}
	stats.ConnectedClients = int64(m.hub.ClientCount())
	return stats
}

func (m *RealtimeMonitor) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *RealtimeMonitor) send(msgType MessageType, data interface{}) error {
	if !m.isRunning() {
		return errors.New("monitor is not running")
	}

	payload, err := encodeMessage(msgType, data)
	if err != nil {
		return err
	}
	m.hub.Broadcast(msgType, payload)

	m.mu.Lock()
	m.stats.MessagesSent++
	m.stats.LastMessageTime = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *RealtimeMonitor) welcomeMessage() []byte {
	m.mu.RLock()
	uptime := time.Since(m.startTime)
	m.mu.RUnlock()

	payload, err := encodeMessage(SystemStatus, SystemStatusMessage{
		Component: "monitor",
		Status:    "connected",
		Uptime:    uptime.Round(time.Second).String(),
		Timestamp: time.Now(),
	})
	if err != nil {
		m.logger.Error("failed to encode status message", zap.Error(err))
		return nil
	}
	return payload
}

func (m *RealtimeMonitor) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.SendHeartbeat(); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func encodeMessage(msgType MessageType, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
	}
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      raw,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return payload, nil
}

// PredictionMessage 预测事件
type PredictionMessage struct {
	Probability float64       `json:"predicted_probability"`
	Class       int           `json:"predicted_class"`
	Duration    time.Duration `json:"duration"`
}

// ErrorMessage 预测失败事件
type ErrorMessage struct {
	Kind string `json:"kind"`
}

// ReloadMessage 模型重载事件
type ReloadMessage struct {
	Generation uint64 `json:"generation"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// SystemStatusMessage 系统状态消息
type SystemStatusMessage struct {
	Component string    `json:"component"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatMessage 心跳消息
type HeartbeatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// ClientMessage 客户端消息
type ClientMessage struct {
	Type  string      `json:"type"` // subscribe, unsubscribe
	Topic MessageType `json:"topic"`
}
