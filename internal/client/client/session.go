package client

import "sync"

// Session holds the bearer token and user id shared by every backend
// implementation. It is updated by the auth service on login, refresh and
// logout.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID int64
}

func (s *Session) Set(token string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
}

func (s *Session) Clear() {
	s.Set("", 0)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Active reports whether a token is present.
func (s *Session) Active() bool {
	return s.Token() != ""
}
