package air

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a WebSocket peer obtained by upgrading a Request/Response
// pair via Response.WebSocket, grounded on the teacher's WebSocket and
// wired to github.com/gorilla/websocket.
type WebSocket struct {
	TextHandler            func(text string) error
	BinaryHandler          func(b []byte) error
	ConnectionCloseHandler func(statusCode int, reason string) error
	PingHandler            func(appData string) error
	PongHandler            func(appData string) error
	ErrorHandler           func(err error)

	conn      *websocket.Conn
	closed    bool
	listening bool
}

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocket upgrades the underlying connection of req/res to the WebSocket
// protocol, per the optional WebSocket peripheral component named in
// SPEC_FULL.md. It must be called before any other Response write method.
func (res *Response) WebSocket() (*WebSocket, error) {
	hr := res.Request.HTTPRequest()
	if hr == nil || res.hw == nil {
		return nil, errWebSocketUnsupportedTransport
	}

	websocketUpgrader.HandshakeTimeout = res.Air.WebSocketHandshakeTimeout
	websocketUpgrader.Subprotocols = res.Air.WebSocketSubprotocols

	conn, err := websocketUpgrader.Upgrade(res.hw, hr, nil)
	if err != nil {
		return nil, err
	}

	res.committed = true // the upgrade already wrote the response headers

	return &WebSocket{conn: conn}, nil
}

// NetConn exposes the underlying net.Conn of ws, for callers that want to
// read/write raw bytes instead of framed WebSocket messages.
func (ws *WebSocket) NetConn() net.Conn {
	return ws.conn.UnderlyingConn()
}

// SetMaxMessageBytes bounds the size of a single incoming message; a
// larger message aborts the connection with websocket.ErrReadLimit,
// surfaced to ErrorHandler.
func (ws *WebSocket) SetMaxMessageBytes(n int64) {
	ws.conn.SetReadLimit(n)
}

// SetReadDeadline sets the deadline for future read operations.
func (ws *WebSocket) SetReadDeadline(t time.Time) error {
	return ws.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the deadline for future write operations.
func (ws *WebSocket) SetWriteDeadline(t time.Time) error {
	return ws.conn.SetWriteDeadline(t)
}

// Close closes ws without sending or waiting for a close message.
func (ws *WebSocket) Close() error {
	ws.closed = true
	return ws.conn.Close()
}

// WriteText writes text to the remote peer.
func (ws *WebSocket) WriteText(text string) error {
	return ws.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// WriteBinary writes b to the remote peer.
func (ws *WebSocket) WriteBinary(b []byte) error {
	return ws.conn.WriteMessage(websocket.BinaryMessage, b)
}

// WriteConnectionClose writes a connection-close control message to the
// remote peer with statusCode and reason.
func (ws *WebSocket) WriteConnectionClose(statusCode int, reason string) error {
	return ws.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(statusCode, reason),
	)
}

// WritePing writes a ping control message to the remote peer.
func (ws *WebSocket) WritePing(appData string) error {
	return ws.conn.WriteMessage(websocket.PingMessage, []byte(appData))
}

// WritePong writes a pong control message to the remote peer.
func (ws *WebSocket) WritePong(appData string) error {
	return ws.conn.WriteMessage(websocket.PongMessage, []byte(appData))
}

// Listen runs ws's read pump until the connection closes or ws.Close is
// called, dispatching each frame to the matching handler. Calling Listen a
// second time on an already-listening ws is a no-op.
func (ws *WebSocket) Listen() {
	if ws.listening {
		return
	}
	ws.listening = true

	ws.conn.SetPingHandler(func(appData string) error {
		if ws.PingHandler != nil {
			return ws.PingHandler(appData)
		}
		return nil
	})
	ws.conn.SetPongHandler(func(appData string) error {
		if ws.PongHandler != nil {
			return ws.PongHandler(appData)
		}
		return nil
	})
	ws.conn.SetCloseHandler(func(code int, text string) error {
		if ws.ConnectionCloseHandler != nil {
			return ws.ConnectionCloseHandler(code, text)
		}
		return nil
	})

	for {
		mt, b, err := ws.conn.ReadMessage()
		if err != nil {
			if !ws.closed && ws.ErrorHandler != nil {
				ws.ErrorHandler(err)
			}
			return
		}

		var herr error
		switch mt {
		case websocket.TextMessage:
			if ws.TextHandler != nil {
				herr = ws.TextHandler(string(b))
			}
		case websocket.BinaryMessage:
			if ws.BinaryHandler != nil {
				herr = ws.BinaryHandler(b)
			}
		}

		if herr != nil && ws.ErrorHandler != nil {
			ws.ErrorHandler(herr)
		}
	}
}

var errWebSocketUnsupportedTransport = &StatusError{
	Code:  500,
	Name:  "websocket unsupported",
	Brief: "air: the current transport does not support WebSocket upgrade",
}
