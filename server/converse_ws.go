package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/nlquery"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// wsClient is one conversation over a WebSocket. Each connection owns its
// own session; the session is dropped when the connection closes. Closing
// the client cancels the question being answered.
type wsClient struct {
	conn    *websocket.Conn
	session *nlquery.Session
	logger  *zap.SugaredLogger
	cancel  context.CancelFunc

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

type wsQuestion struct {
	Question string `json:"question"`
}

// HandleConverseWebSocket upgrades to a WebSocket and answers each
// {"question": ...} message with {"question","sql","answer"} or {"error"}
func (s *FINQServer) HandleConverseWebSocket(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engine()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.requestLogger(r).Debugw("WebSocket upgrade failed", "error", err)
		return
	}

	session := s.deps.Sessions.New()
	ctx, cancel := context.WithCancel(logger.WithSessionID(context.Background(), session.ID))
	client := &wsClient{
		conn:    conn,
		session: session,
		logger:  s.logger.With(logger.FieldSessionID, session.ID),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	client.logger.Infow("Conversation connected", "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		s.deps.Sessions.Delete(session.ID)
		client.close()
		client.logger.Infow("Conversation disconnected")
	}()

	go client.pingLoop()

	questions := make(chan string, 1)
	go client.answerLoop(ctx, engine, questions)
	client.readLoop(questions)
	close(questions)
}

// readLoop keeps reading while a question is answered so a disconnect is
// noticed at once. One more question may wait behind the one being
// answered; further ones are refused.
func (c *wsClient) readLoop(questions chan<- string) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg wsQuestion
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("WebSocket read failed", "error", err)
			}
			return
		}

		if strings.TrimSpace(msg.Question) == "" {
			c.write(newErrorResponse(errors.NewInvalidRequestError("question is empty")))
			continue
		}

		select {
		case questions <- msg.Question:
		default:
			c.write(newErrorResponse(errors.Wrap(errors.ErrConflict, "previous question is still being answered")))
		}
	}
}

func (c *wsClient) answerLoop(ctx context.Context, engine nlquery.Answerer, questions <-chan string) {
	for q := range questions {
		ans, err := c.session.Ask(ctx, engine, q)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Debugw("Question failed", "error", err)
			c.write(newErrorResponse(err))
			continue
		}
		c.write(ans)
	}
}

func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) write(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.logger.Debugw("WebSocket write failed", "error", err)
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		_ = c.conn.Close()
	})
}
