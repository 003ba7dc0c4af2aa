package podstate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/podharness/internal/clock"
)

// Pod lifecycle statuses.
const (
	StatusCreated   = "created"
	StatusRunning   = "running"
	StatusPassed    = "passed"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// PodStatus is the tracked state of one pod.
type PodStatus struct {
	PodID     string `json:"pod_id"`
	SessionID string `json:"session_id,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	UpdatedAt string `json:"updated_at"`
}

// Manager tracks pod statuses. Safe for concurrent use.
type Manager struct {
	clock clock.Clock

	mu   sync.Mutex
	pods map[string]*PodStatus
}

// NewManager creates a manager. A nil clock defaults to the system
// clock.
func NewManager(c clock.Clock) *Manager {
	if c == nil {
		c = clock.System{}
	}
	return &Manager{clock: c, pods: make(map[string]*PodStatus)}
}

// RegisterPod starts tracking a pod in created state. Registering an
// already tracked pod is an error.
func (m *Manager) RegisterPod(podID, sessionID, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pods[podID]; ok {
		return fmt.Errorf("pod already registered: %q", podID)
	}
	m.pods[podID] = &PodStatus{
		PodID:     podID,
		SessionID: sessionID,
		Dir:       dir,
		Status:    StatusCreated,
		UpdatedAt: clock.Timestamp(m.clock.Now()),
	}
	return nil
}

// UpdateStatus transitions a pod to a new status and attempt count.
func (m *Manager) UpdateStatus(podID, status string, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pod, ok := m.pods[podID]
	if !ok {
		return fmt.Errorf("unknown pod: %q", podID)
	}
	pod.Status = status
	pod.Attempts = attempts
	pod.UpdatedAt = clock.Timestamp(m.clock.Now())
	return nil
}

// GetStatus returns a copy of one pod's status.
func (m *Manager) GetStatus(podID string) (PodStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pod, ok := m.pods[podID]
	if !ok {
		return PodStatus{}, false
	}
	return *pod, true
}

// AllStatuses returns copies of every tracked pod, ordered by pod id.
func (m *Manager) AllStatuses() []PodStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PodStatus, 0, len(m.pods))
	for _, pod := range m.pods {
		out = append(out, *pod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PodID < out[j].PodID })
	return out
}
