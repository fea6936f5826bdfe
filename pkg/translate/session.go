package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lingopipe/lingopipe/pkg/session"
)

// SessionConfig describes one interpreter session.
type SessionConfig struct {
	// SourceLanguage is the language being spoken (e.g. "zh-CN").
	SourceLanguage string

	// TargetLanguage is the language to translate into (e.g. "en-US").
	TargetLanguage string

	// Voice selects the synthesized target voice. Optional.
	Voice string

	// CaptureSampleRate is the outbound L16 sample rate. Defaults to
	// 16000.
	CaptureSampleRate int

	// PlaybackSampleRate is the requested synthesized audio sample rate.
	// Defaults to 24000.
	PlaybackSampleRate int
}

// OpenSession opens a streaming translation session. It returns once the
// endpoint acknowledges the start request or fails.
func (c *Client) OpenSession(ctx context.Context, config *SessionConfig) (*Session, error) {
	if config == nil {
		config = &SessionConfig{}
	}
	if config.CaptureSampleRate == 0 {
		config.CaptureSampleRate = 16000
	}
	if config.PlaybackSampleRate == 0 {
		config.PlaybackSampleRate = 24000
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("X-Client-User", c.config.userID)

	dialer := websocket.Dialer{HandshakeTimeout: c.config.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.config.wsURL+"/v1/interpret/stream", headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       resp.StatusCode,
				Message:    fmt.Sprintf("handshake failed: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, wrapError(err, "connect websocket")
	}

	s := &Session{
		conn:      conn,
		reqID:     generateReqID(),
		recvChan:  make(chan *session.Event, 100),
		errChan:   make(chan error, 1),
		closeChan: make(chan struct{}),
	}

	startReq := map[string]any{
		"type": "start",
		"data": map[string]any{
			"session_id":      s.reqID,
			"user_id":         c.config.userID,
			"source_language": config.SourceLanguage,
			"target_language": config.TargetLanguage,
			"audio": map[string]any{
				"format":      "pcm",
				"sample_rate": config.CaptureSampleRate,
				"channel":     1,
				"bits":        16,
			},
			"tts": map[string]any{
				"enable":      true,
				"voice":       config.Voice,
				"sample_rate": config.PlaybackSampleRate,
			},
		},
	}
	if err := conn.WriteJSON(startReq); err != nil {
		conn.Close()
		return nil, wrapError(err, "send start request")
	}

	// Wait for the start acknowledgement before handing the session out.
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, wrapError(err, "read start response")
	}

	var ack struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		conn.Close()
		return nil, wrapError(err, "parse start response")
	}
	switch ack.Type {
	case "started":
		s.sessionID = ack.Data.SessionID
	case "error":
		conn.Close()
		return nil, &Error{Code: ack.Code, Message: ack.Message}
	default:
		conn.Close()
		return nil, fmt.Errorf("translate: unexpected start response type %q", ack.Type)
	}

	go s.receiveLoop()

	return s, nil
}

// Session is one open streaming translation session.
type Session struct {
	conn      *websocket.Conn
	reqID     string
	sessionID string

	writeMu   sync.Mutex
	recvChan  chan *session.Event
	errChan   chan error
	closeChan chan struct{}
	closeOnce sync.Once
}

// SessionID returns the endpoint-assigned session identifier.
func (s *Session) SessionID() string {
	return s.sessionID
}

// SendFrame sends one outbound L16 audio frame as a binary message.
// Fire-and-forget; frames are transmitted in call order.
func (s *Session) SendFrame(ctx context.Context, frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Events yields inbound session events in arrival order. A yielded error
// terminates the stream.
func (s *Session) Events() iter.Seq2[*session.Event, error] {
	return func(yield func(*session.Event, error) bool) {
		for {
			select {
			case ev, ok := <-s.recvChan:
				if !ok {
					return
				}
				if !yield(ev, nil) {
					return
				}
			case err := <-s.errChan:
				yield(nil, err)
				return
			case <-s.closeChan:
				return
			}
		}
	}
}

// Close sends the finish message and closes the connection. Idempotent,
// and safe to call at any point after OpenSession returns.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		finishReq := map[string]any{
			"type": "finish",
			"data": map[string]any{"session_id": s.reqID},
		}
		s.writeMu.Lock()
		s.conn.WriteJSON(finishReq)
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

// receiveLoop reads inbound messages until the connection ends.
func (s *Session) receiveLoop() {
	defer close(s.recvChan)

	for {
		select {
		case <-s.closeChan:
			return
		default:
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				select {
				case s.errChan <- wrapError(err, "read message"):
				default:
				}
			}
			return
		}

		// Raw binary frames carry synthesized audio directly.
		if msgType == websocket.BinaryMessage {
			if !s.deliver(&session.Event{Type: session.EventAudio, Audio: data}) {
				return
			}
			continue
		}

		ev, err := parseEvent(data)
		if err != nil {
			select {
			case s.errChan <- err:
			default:
			}
			return
		}
		if ev == nil {
			continue
		}
		if !s.deliver(ev) {
			return
		}
		if ev.Type == session.EventClosed {
			return
		}
	}
}

// deliver pushes an event unless the session is closing.
func (s *Session) deliver(ev *session.Event) bool {
	select {
	case s.recvChan <- ev:
		return true
	case <-s.closeChan:
		return false
	}
}

// parseEvent maps one wire message to a session event. Unknown types are
// skipped (nil, nil); error messages return an *Error.
func parseEvent(data []byte) (*session.Event, error) {
	var msg struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Text  string `json:"text"`
			Audio string `json:"audio"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		// Not an event we understand; skip rather than kill the session.
		return nil, nil
	}

	switch msg.Type {
	case "source_text":
		return &session.Event{Type: session.EventSourceText, Text: msg.Data.Text}, nil
	case "target_text":
		return &session.Event{Type: session.EventTargetText, Text: msg.Data.Text}, nil
	case "audio":
		return &session.Event{Type: session.EventAudio, AudioBase64: msg.Data.Audio}, nil
	case "interrupted":
		return &session.Event{Type: session.EventInterrupted}, nil
	case "turn_complete":
		return &session.Event{Type: session.EventTurnComplete}, nil
	case "closed":
		return &session.Event{Type: session.EventClosed}, nil
	case "error":
		return nil, &Error{Code: msg.Code, Message: msg.Message}
	}
	return nil, nil
}

var _ session.RemoteSession = (*Session)(nil)
