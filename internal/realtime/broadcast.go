package realtime

// SendTo delivers an event to a single user. Unreachable recipients are
// silently skipped: delivery is best-effort and at-most-once, with no
// queueing or retry.
func (s *Server) SendTo(userId string, ev *ServerEvent) {
	c, ok := s.registry.Get(userId)
	if !ok {
		return
	}

	if c.queueEvent(ev) {
		s.stats.Incr("NumEventsDelivered")
	}
}

// SendToMany delivers an event to each of the given users
// independently; one unreachable recipient never aborts delivery to the
// others.
func (s *Server) SendToMany(userIds []string, ev *ServerEvent) {
	for _, id := range userIds {
		s.SendTo(id, ev)
	}
}

// BroadcastAll delivers an event to every registered connection.
func (s *Server) BroadcastAll(ev *ServerEvent) {
	s.registry.ForEach(func(userId string, c *Client) {
		if c.queueEvent(ev) {
			s.stats.Incr("NumEventsDelivered")
		}
	})
}
