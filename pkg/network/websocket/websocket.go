package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	readWait       = 5 * time.Second
	writeWait      = 10 * time.Second
)

type WS struct {
	conn deadlinedConn
	send chan []byte

	OnMessage WSMessageHandler

	pingPong bool
	once     sync.Once

	shutdown *sync.WaitGroup
	Done     chan struct{}

	log *logger.Logger
}

type WSMessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader creates an upgrader that accepts cross-origin requests
// from the given origin, or any origin when it is *.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	if origin == "*" {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	} else if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		close(ws.send)
		ws.shutdown.Done()
		ws.close()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("ws read fail")
			}
			break
		}
		ws.OnMessage(message, err)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		ws.shutdown.Done()
		ws.close()
	}()
	if ws.pingPong {
		for {
			select {
			case message, ok := <-ws.send:
				if !ws.handleMessage(message, ok) {
					return
				}
			case <-ticker.C:
				if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
	for message := range ws.send {
		if !ws.handleMessage(message, true) {
			return
		}
	}
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
}

func (ws *WS) handleMessage(message []byte, ok bool) bool {
	if !ok {
		_ = ws.conn.write(websocket.CloseMessage, []byte{})
		return false
	}
	if err := ws.conn.write(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

// NewServerWithConn wraps an already upgraded server-side connection.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	return newSocket(conn, true, log), nil
}

// NewServer upgrades an HTTP request into a websocket peer handler.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := DefaultUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)

	safeConn := deadlinedConn{
		sock: conn,
		wt:   writeWait,
	}

	ws := &WS{
		conn:      safeConn,
		send:      make(chan []byte, 2),
		pingPong:  pingPong,
		shutdown:  &shut,
		Done:      make(chan struct{}, 1),
		log:       log,
		OnMessage: func([]byte, error) {},
	}
	return ws
}

// Listen starts the reader and writer pumps.
// The returned channel signals socket close.
func (ws *WS) Listen() chan struct{} {
	go ws.writer()
	go ws.reader()
	return ws.Done
}

func (ws *WS) Write(data []byte) {
	defer func() {
		// writes to the closed send channel are dropped
		_ = recover()
	}()
	ws.send <- data
}

func (ws *WS) Close() {
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
	_ = ws.conn.close()
}

func (ws *WS) close() {
	ws.once.Do(func() {
		go func() {
			ws.shutdown.Wait()
			_ = ws.conn.close()
			ws.Done <- struct{}{}
		}()
	})
}
