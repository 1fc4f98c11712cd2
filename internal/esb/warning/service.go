// Package warning collects best-effort diagnostic warnings raised while the
// bus is running — a fault routing failure, a dropped diagnostic event, a
// secret that failed to resolve — so an operator can see them through the
// admin API without them ever affecting message outcome.
package warning

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxWarnings bounds in-memory storage; the oldest warning is evicted once
// the limit is reached.
const MaxWarnings = 1000

// Warning is one recorded diagnostic condition.
type Warning struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Acknowledged bool      `json:"acknowledged"`
}

// Service records and serves warnings for the admin API.
type Service interface {
	AddWarning(category, severity, message, source string)
	GetAllWarnings() []*Warning
	GetWarningsBySeverity(severity string) []*Warning
	GetUnacknowledgedWarnings() []*Warning
	AcknowledgeWarning(warningID string) bool
	ClearAllWarnings()
	ClearOldWarnings(hoursOld int)
}

// InMemoryService is the bus's built-in, process-local Service.
type InMemoryService struct {
	mu       sync.RWMutex
	warnings map[string]*Warning
}

func NewInMemoryService() *InMemoryService {
	return &InMemoryService{warnings: make(map[string]*Warning)}
}

func (s *InMemoryService) AddWarning(category, severity, message, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.warnings) >= MaxWarnings {
		var oldestID string
		var oldestTime time.Time
		for id, w := range s.warnings {
			if oldestID == "" || w.Timestamp.Before(oldestTime) {
				oldestID, oldestTime = id, w.Timestamp
			}
		}
		if oldestID != "" {
			delete(s.warnings, oldestID)
		}
	}

	id := uuid.New().String()
	s.warnings[id] = &Warning{
		ID:        id,
		Category:  category,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
		Source:    source,
	}
	log.Warn().Str("severity", severity).Str("category", category).Str("source", source).Msg(message)
}

func (s *InMemoryService) GetAllWarnings() []*Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Warning, 0, len(s.warnings))
	for _, w := range s.warnings {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *InMemoryService) GetWarningsBySeverity(severity string) []*Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Warning
	for _, w := range s.warnings {
		if strings.EqualFold(w.Severity, severity) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *InMemoryService) GetUnacknowledgedWarnings() []*Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Warning
	for _, w := range s.warnings {
		if !w.Acknowledged {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *InMemoryService) AcknowledgeWarning(warningID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.warnings[warningID]
	if !ok {
		return false
	}
	w.Acknowledged = true
	return true
}

func (s *InMemoryService) ClearAllWarnings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = make(map[string]*Warning)
}

func (s *InMemoryService) ClearOldWarnings(hoursOld int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-time.Duration(hoursOld) * time.Hour)
	for id, w := range s.warnings {
		if w.Timestamp.Before(threshold) {
			delete(s.warnings, id)
		}
	}
}
