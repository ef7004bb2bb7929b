package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// Transport is one live connection attempt. ReadMessage blocks until a
// frame arrives or the transport dies; it returns io.EOF for an orderly
// remote shutdown and a domain.ErrTransport-wrapped error otherwise.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a transport to an endpoint. Implementations report failures
// by wrapping domain.ErrTransport.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, opts domain.EffectiveOptions) (Transport, error)
}

const (
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

// WebsocketDialer dials ws(s) endpoints relative to a base URL. Requests
// arrive pre-authenticated from the fronting proxy; the security token is
// forwarded as a bearer header untouched.
type WebsocketDialer struct {
	BaseURL string
}

func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string, opts domain.EffectiveOptions) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if opts.SecurityToken != "" {
		header.Set("Authorization", "Bearer "+opts.SecurityToken)
	}
	if opts.TenantID != "" {
		header.Set("X-Tenant-ID", opts.TenantID)
	}

	url := d.BaseURL + "/" + endpoint
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, url, err)
	}
	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read: %v", domain.ErrTransport, err)
	}
	return data, nil
}

func (t *websocketTransport) WriteMessage(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %v", domain.ErrTransport, err)
	}
	return nil
}

func (t *websocketTransport) Close() error {
	deadline := time.Now().Add(writeTimeout)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}
