package attendance

import (
	"strings"

	"github.com/google/uuid"
)

// Session carries per-client state between submissions: the leader name and the last
// sector/tier picked. It is created at session start and never shared across sessions.
type Session struct {
	ID         string `json:"id"`
	LeaderName string `json:"leader_name"`
	LastSector string `json:"last_sector,omitempty"`
	LastTier   string `json:"last_tier,omitempty"`
}

// NewSession starts an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// SetLeader stores a trimmed leader name.
func (s *Session) SetLeader(name string) {
	if s == nil {
		return
	}
	s.LeaderName = strings.TrimSpace(name)
}

func (s *Session) remember(rec Record) {
	if s == nil {
		return
	}
	s.LeaderName = rec.LeaderName
	s.LastSector = rec.Sector
	s.LastTier = rec.Tier
}
