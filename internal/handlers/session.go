package handlers

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"realtime-backend/internal/apperr"
	"realtime-backend/internal/models"
	"realtime-backend/internal/realtime"
	"realtime-backend/internal/services"

	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultIdleTimeout  = 35 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

var errMalformedFrame = apperr.InvalidArg("malformed frame")

// SessionHandler runs the lifecycle of websocket connections: admission, the
// receive loop and deregistration.
type SessionHandler struct {
	verifier services.IdentityVerifier
	chats    *services.ChatService
	users    services.UserDirectory
	router   *realtime.Router
	log      zerolog.Logger

	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func NewSessionHandler(verifier services.IdentityVerifier, chats *services.ChatService, users services.UserDirectory,
	router *realtime.Router, idleTimeout, writeTimeout time.Duration, log zerolog.Logger) *SessionHandler {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &SessionHandler{
		verifier:     verifier,
		chats:        chats,
		users:        users,
		router:       router,
		log:          log.With().Str("component", "session").Logger(),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

// session is the state owned by one connection's receive loop.
type session struct {
	client  *realtime.Client
	channel realtime.Channel
	log     zerolog.Logger

	// participants of the chat channel, loaded on first use
	conv *models.Conversation

	// closed when the reader goroutine has returned
	readerDone chan struct{}
}

// Serve owns conn until it returns. It returns when the peer disconnects, the
// transport fails, the connection is superseded, or ctx is cancelled.
func (h *SessionHandler) Serve(ctx context.Context, conn realtime.Transport, ch realtime.Channel, credential string) {
	log := h.log.With().Str("channel", ch.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("session panicked")
		}
	}()

	userID, err := h.verifier.Verify(ctx, credential)
	if err != nil {
		log.Warn().Err(err).Msg("admission rejected")
		realtime.NewClient(0, conn, h.writeTimeout).Close(realtime.CloseUnauthorized, "Unauthorized")
		return
	}

	client := realtime.NewClient(userID, conn, h.writeTimeout)
	s := &session{
		client:  client,
		channel: ch,
		log:     log.With().Int("user_id", userID).Str("conn_id", client.ID).Logger(),
	}

	registry := h.router.Registry()
	if prev := registry.Register(ch, client); prev != nil {
		s.log.Info().Str("previous_conn_id", prev.ID).Msg("superseding previous connection")
		prev.Close(realtime.CloseSuperseded, "superseded")
	}
	s.log.Debug().Msg("registered")

	defer func() {
		removed := registry.Remove(ch, client)
		client.Close(websocket.CloseNormalClosure, "")
		client.Wait()
		if s.readerDone != nil {
			<-s.readerDone
		}
		if removed && ch == realtime.Online {
			h.router.ToChannel(realtime.Online, models.PresenceEvent{Type: models.EventUserOffline, UserID: userID})
		}
		s.log.Debug().Bool("removed", removed).Msg("session closed")
	}()

	if ch == realtime.Online {
		h.router.ToChannel(realtime.Online, models.PresenceEvent{
			Type:     models.EventUserOnline,
			UserID:   userID,
			FullName: h.displayName(ctx, userID),
		})
	}

	h.receiveLoop(ctx, s)
}

func (h *SessionHandler) receiveLoop(ctx context.Context, s *session) {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	s.readerDone = make(chan struct{})
	go func() {
		defer close(s.readerDone)
		defer close(frames)
		for {
			mt, data, err := s.client.Read()
			if err != nil {
				readErr <- err
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			select {
			case frames <- data:
			case <-s.client.Done():
				return
			}
		}
	}()

	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			s.client.Close(websocket.CloseGoingAway, "server shutdown")
			return
		case <-s.client.Done():
			return
		case <-idle.C:
			s.log.Debug().Msg("idle tick")
			idle.Reset(h.idleTimeout)
		case data, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
						s.log.Warn().Err(err).Msg("read failed")
					}
				default:
				}
				return
			}
			idle.Reset(h.idleTimeout)
			if err := h.dispatch(ctx, s, data); err != nil {
				if apperr.CodeOf(err) == apperr.CodeUnavailable {
					s.log.Warn().Err(err).Msg("write failed, closing session")
					return
				}
				s.log.Info().Err(err).Str("code", string(apperr.CodeOf(err))).Msg("frame dropped")
			}
		}
	}
}

// dispatch handles one frame. A returned error means the frame had no effect;
// only a transport error ends the session.
func (h *SessionHandler) dispatch(ctx context.Context, s *session, data []byte) error {
	var f models.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return errMalformedFrame
	}

	switch f.Type {
	case models.FramePing:
		if err := s.client.SendJSON(models.PongEvent{Type: models.EventPong}); err != nil {
			return apperr.Transport(err)
		}
		return nil
	case models.FrameMessage:
		if !s.channel.IsChat() {
			return nil
		}
		return h.onMessage(ctx, s, f)
	case models.FrameTyping:
		if !s.channel.IsChat() {
			return nil
		}
		return h.onTyping(ctx, s, f)
	default:
		return nil
	}
}

func (h *SessionHandler) onMessage(ctx context.Context, s *session, f models.Frame) error {
	var content string
	if f.Content != nil {
		content = *f.Content
	}
	msg, err := h.chats.SendMessage(ctx, s.channel.ID, s.client.UserID, content, f.Attachment)
	if err != nil {
		return errors.Wrap(err, "message frame")
	}
	conv, err := h.conversation(ctx, s)
	if err != nil {
		return errors.Wrap(err, "message frame")
	}
	n := h.router.ToUsers(s.channel, []int{conv.User1ID, conv.User2ID}, models.NewMessageEventFrom(msg))
	s.log.Debug().Int("message_id", msg.ID).Int("delivered", n).Msg("message sent")
	return nil
}

func (h *SessionHandler) onTyping(ctx context.Context, s *session, f models.Frame) error {
	conv, err := h.conversation(ctx, s)
	if err != nil {
		return errors.Wrap(err, "typing frame")
	}
	isTyping := true
	if f.IsTyping != nil {
		isTyping = *f.IsTyping
	}
	h.router.ToUser(s.channel, conv.OtherParticipant(s.client.UserID), models.TypingEvent{
		Type:     models.EventTyping,
		UserID:   s.client.UserID,
		IsTyping: isTyping,
	})
	return nil
}

func (h *SessionHandler) conversation(ctx context.Context, s *session) (*models.Conversation, error) {
	if s.conv != nil {
		return s.conv, nil
	}
	conv, err := h.chats.GetConversation(ctx, s.channel.ID, s.client.UserID)
	if err != nil {
		return nil, err
	}
	s.conv = conv
	return conv, nil
}

func (h *SessionHandler) displayName(ctx context.Context, userID int) string {
	if h.users == nil {
		return ""
	}
	name, err := h.users.DisplayName(ctx, userID)
	if err != nil {
		h.log.Debug().Err(err).Int("user_id", userID).Msg("display name lookup failed")
		return ""
	}
	return name
}
