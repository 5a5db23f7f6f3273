package dispatch

import (
	"log"
	"sync"

	"github.com/xaoc-labs/modcore/internal/core"
)

// LogSink is an ActionSink that logs every moderation action and keeps a
// bounded in-memory trail for the admin API. It is the default sink when
// no platform adapter is configured, so a fresh deployment runs dry.
type LogSink struct {
	mu       sync.Mutex
	recent   []core.ActionRequest
	capacity int
	logger   *log.Logger
}

const defaultTrailCapacity = 200

func NewLogSink() *LogSink {
	return &LogSink{
		capacity: defaultTrailCapacity,
		logger:   log.New(log.Writer(), "[ACTION] ", log.LstdFlags),
	}
}

func (s *LogSink) Submit(req core.ActionRequest) error {
	s.logger.Printf("%s | user=%s:%s channel=%s duration=%s reason=%q",
		req.Kind, req.CommunityID, req.UserID, req.ChannelID, req.Duration, req.Reason)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, req)
	if len(s.recent) > s.capacity {
		s.recent = s.recent[len(s.recent)-s.capacity:]
	}
	return nil
}

// Recent returns the retained action trail, newest last.
func (s *LogSink) Recent() []core.ActionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ActionRequest, len(s.recent))
	copy(out, s.recent)
	return out
}
