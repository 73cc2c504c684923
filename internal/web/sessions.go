package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danielolaszy/sprintsplit/internal/review"
)

const (
	sessionCookie = "sprintsplit_session"
	sessionIdle   = 12 * time.Hour
)

type session struct {
	ctrl     *review.Controller
	lastSeen time.Time
}

// sessions keeps one review controller per browser session in memory.
type sessions struct {
	mu      sync.Mutex
	byID    map[string]*session
	newCtrl func() *review.Controller
	now     func() time.Time
}

func newSessions(newCtrl func() *review.Controller) *sessions {
	return &sessions{
		byID:    make(map[string]*session),
		newCtrl: newCtrl,
		now:     time.Now,
	}
}

// get returns the controller of the request's session, creating the session
// and its cookie when the request has none or an unknown one.
func (s *sessions) get(c *gin.Context) *review.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, err := c.Cookie(sessionCookie); err == nil {
		if sess, ok := s.byID[id]; ok {
			sess.lastSeen = now
			return sess.ctrl
		}
	}

	s.prune(now)

	id := uuid.NewString()
	sess := &session{ctrl: s.newCtrl(), lastSeen: now}
	s.byID[id] = sess

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	return sess.ctrl
}

func (s *sessions) prune(now time.Time) {
	for id, sess := range s.byID {
		if now.Sub(sess.lastSeen) > sessionIdle {
			delete(s.byID, id)
		}
	}
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
