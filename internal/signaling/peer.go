package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phoenix-visual-support/signal-relay/internal/relay"
)

// wsPeer implements relay.Peer. Data frames are written only by writePump;
// control frames go through WriteControl, which gorilla allows concurrently.
type wsPeer struct {
	id   string
	conn *websocket.Conn

	send         chan []byte
	pingInterval time.Duration

	closeOnce   sync.Once
	done        chan struct{}
	pumpDone    chan struct{}
	closeMu     sync.Mutex
	closeCode   int
	closeReason string
}

var _ relay.Peer = (*wsPeer)(nil)

func newWSPeer(id string, conn *websocket.Conn, queue int, pingInterval time.Duration) *wsPeer {
	return &wsPeer{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, queue),
		pingInterval: pingInterval,
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}
}

func (p *wsPeer) ID() string { return p.id }

// Send enqueues frame for the write pump. It never blocks: a full queue or a
// closing connection drops the frame.
func (p *wsPeer) Send(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

// Close flushes queued frames and closes the connection with a going-away
// status.
func (p *wsPeer) Close(reason string) {
	p.closeWith(websocket.CloseGoingAway, reason)
}

func (p *wsPeer) closeWith(code int, reason string) {
	p.closeOnce.Do(func() {
		p.closeMu.Lock()
		p.closeCode = code
		p.closeReason = reason
		p.closeMu.Unlock()
		close(p.done)
	})
}

func (p *wsPeer) reason() string {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return p.closeReason
}

// fail reports a fatal error to the browser and then closes.
func (p *wsPeer) fail(code, message string, closeCode int, closeReason string) {
	p.Send(relay.EncodeError(code, message))
	p.closeWith(closeCode, closeReason)
}

func (p *wsPeer) writePump() {
	defer close(p.pumpDone)
	defer p.conn.Close()

	var tick <-chan time.Time
	if p.pingInterval > 0 {
		ticker := time.NewTicker(p.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case frame := <-p.send:
			if err := p.write(frame); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-tick:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-p.done:
			p.flush()
			p.closeMu.Lock()
			code, reason := p.closeCode, p.closeReason
			p.closeMu.Unlock()
			if code != websocket.CloseAbnormalClosure {
				_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
			}
			return
		}
	}
}

// flush writes whatever is still queued so error frames queued just before
// a close reach the browser.
func (p *wsPeer) flush() {
	for {
		select {
		case frame := <-p.send:
			if err := p.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *wsPeer) write(frame []byte) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}
