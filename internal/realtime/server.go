package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/blogloom/realtime/internal/stats"
	"github.com/blogloom/realtime/internal/store"
)

const defaultPingInterval = 30 * time.Second

// Server owns the connection registry and runs the liveness monitor.
// It exposes the broadcast primitives used by both the event router and
// the HTTP layer.
type Server struct {
	log      *log.Logger
	store    store.Repository
	stats    stats.StatsProvider
	registry *Registry
	// convLocks serializes read-modify-write mutations per conversation.
	convLocks    sync.Map
	pingInterval time.Duration
	stop         chan struct{}
	done         chan struct{}
}

func NewServer(logger *log.Logger, repo store.Repository, su stats.StatsProvider) (*Server, error) {
	s := &Server{
		log:          logger,
		store:        repo,
		stats:        su,
		registry:     NewRegistry(),
		pingInterval: defaultPingInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, metric := range []string{
		"NumConnections",
		"NumEventsReceived",
		"NumInvalidEvents",
		"NumEventsDelivered",
	} {
		s.stats.RegisterMetric(metric)
	}

	return s, nil
}

// Run drives the liveness monitor until Shutdown is called. Each sweep
// evicts connections that missed the previous cycle's pong, then marks
// the rest unconfirmed and pings them.
func (s *Server) Run() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			s.log.Println("closing all connections")
			s.registry.ForEach(func(userId string, c *Client) {
				c.terminate()
				s.DeRegisterClient(c)
			})
			close(s.done)
			return
		}
	}
}

func (s *Server) sweep() {
	s.registry.ForEach(func(userId string, c *Client) {
		if !c.alive.Swap(false) {
			s.log.Printf("evicting unresponsive connection for user %q", userId)
			c.terminate()
			s.DeRegisterClient(c)
			return
		}

		if err := c.ping(); err != nil {
			s.log.Printf("ping user %q: %v", userId, err)
			c.terminate()
			s.DeRegisterClient(c)
		}
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterClient registers the connection, closing any displaced
// connection for the same user, and marks the user online.
func (s *Server) RegisterClient(c *Client) {
	if old := s.registry.Register(c.user.Id, c); old != nil {
		s.log.Printf("replacing existing connection for user %q", c.user.Id)
		old.terminate()
	}
	s.stats.Incr("NumConnections")

	s.markOnline(c)
}

// DeRegisterClient runs the disconnect path at most once per client:
// persist offline presence, fan out to the followers captured at
// connect, then drop the registry entry.
func (s *Server) DeRegisterClient(c *Client) {
	c.teardownOnce.Do(func() {
		defer c.stopClient()
		s.stats.Decr("NumConnections")

		if cur, ok := s.registry.Get(c.user.Id); !ok || cur != c {
			// Displaced by a newer connection; presence now belongs to
			// the replacement.
			return
		}

		s.markOffline(c)
		s.registry.RemoveIf(c.user.Id, c)
	})
}

// lockConversation acquires the per-conversation mutex and returns the
// unlock func.
func (s *Server) lockConversation(conversationId string) func() {
	v, _ := s.convLocks.LoadOrStore(conversationId, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ToggleReaction serializes the reaction read-modify-write against any
// other mutation on the same conversation. Every caller, the event
// router and the HTTP layer alike, must toggle reactions through here.
func (s *Server) ToggleReaction(ctx context.Context, conversationId, messageId, userId, emoji string) (store.Message, error) {
	unlock := s.lockConversation(conversationId)
	defer unlock()
	return s.store.ToggleReaction(ctx, messageId, userId, emoji)
}

// UpdateMessageText serializes a message edit against any other
// mutation on the same conversation.
func (s *Server) UpdateMessageText(ctx context.Context, conversationId, messageId, senderId, text string) (store.Message, error) {
	unlock := s.lockConversation(conversationId)
	defer unlock()
	return s.store.UpdateMessageText(ctx, messageId, senderId, text)
}
