package realtime

import (
	"encoding/json"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

// Router delivers events to members of a channel. Delivery is best effort and
// at most once: users that are not registered miss the event, and a client whose
// write fails is unregistered and closed without affecting the other recipients.
type Router struct {
	registry *Registry
	log      zerolog.Logger
}

func NewRouter(registry *Registry, log zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		log:      log.With().Str("component", "router").Logger(),
	}
}

func (rt *Router) Registry() *Registry { return rt.registry }

// ToChannel delivers event to every member of ch and returns how many writes succeeded.
func (rt *Router) ToChannel(ch Channel, event any) int {
	return rt.deliver(ch, rt.registry.snapshot(ch, nil), event)
}

// ToUser delivers event to userID if it is registered on ch.
func (rt *Router) ToUser(ch Channel, userID int, event any) bool {
	return rt.deliver(ch, rt.registry.snapshot(ch, []int{userID}), event) == 1
}

// ToUsers delivers event to each listed user registered on ch.
func (rt *Router) ToUsers(ch Channel, userIDs []int, event any) int {
	if len(userIDs) == 0 {
		return 0
	}
	return rt.deliver(ch, rt.registry.snapshot(ch, userIDs), event)
}

func (rt *Router) deliver(ch Channel, targets []*Client, event any) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := json.Marshal(event)
	if err != nil {
		rt.log.Error().Err(err).Str("channel", ch.String()).Msg("encode event")
		return 0
	}

	if len(targets) == 1 {
		if rt.send(ch, targets[0], payload) {
			return 1
		}
		return 0
	}

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if rt.send(ch, c, payload) {
				delivered.Add(1)
			}
		}(c)
	}
	wg.Wait()
	return int(delivered.Load())
}

func (rt *Router) send(ch Channel, c *Client, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("channel", ch.String()).
				Int("user_id", c.UserID).
				Str("conn_id", c.ID).
				Msg("delivery panicked, dropping connection")
			rt.drop(ch, c)
			ok = false
		}
	}()

	err := c.Send(payload)
	if err == nil {
		return true
	}
	rt.log.Warn().Err(err).
		Str("channel", ch.String()).
		Int("user_id", c.UserID).
		Str("conn_id", c.ID).
		Msg("delivery failed, dropping connection")
	rt.drop(ch, c)
	return false
}

func (rt *Router) drop(ch Channel, c *Client) {
	rt.registry.Remove(ch, c)
	c.Close(websocket.CloseInternalServerErr, "write failed")
}
