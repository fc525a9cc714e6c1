package realtime

import (
	"context"
)

// markOnline persists online presence, captures the user's follower set
// for the lifetime of the connection, notifies reachable followers and
// acknowledges the new connection.
func (s *Server) markOnline(c *Client) {
	ctx := context.Background()
	now := Now()

	if err := s.store.SetPresence(ctx, c.user.Id, true, now); err != nil {
		s.log.Println("set presence:", err)
	}

	followers, err := s.store.GetFollowers(ctx, c.user.Id)
	if err != nil {
		s.log.Println("get followers:", err)
	}
	c.followers = followers

	s.SendToMany(c.followers, &ServerEvent{
		Type: EventUserStatusUpdate,
		Payload: UserStatusUpdatePayload{
			UserId: c.user.Id,
			Status: StatusOnline,
		},
	})

	c.queueEvent(&ServerEvent{
		Type: EventConnectionEstablished,
		Payload: ConnectionEstablishedPayload{
			UserId:    c.user.Id,
			Timestamp: now,
		},
	})
}

// markOffline persists offline presence and fans out to the follower
// set captured at connect time. A failed presence write never blocks
// the close path.
func (s *Server) markOffline(c *Client) {
	now := Now()

	if err := s.store.SetPresence(context.Background(), c.user.Id, false, now); err != nil {
		s.log.Println("set presence:", err)
	}

	s.SendToMany(c.followers, &ServerEvent{
		Type: EventUserStatusUpdate,
		Payload: UserStatusUpdatePayload{
			UserId:   c.user.Id,
			Status:   StatusOffline,
			LastSeen: &now,
		},
	})
}
