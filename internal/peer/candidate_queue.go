package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// CandidateQueue buffers network candidates that arrive before the owning
// session has a remote description. Append-only until drained; drained in
// arrival order exactly once.
type CandidateQueue struct {
	mu      sync.Mutex
	pending []webrtc.ICECandidateInit
}

func (q *CandidateQueue) Enqueue(candidate webrtc.ICECandidateInit) {
	q.mu.Lock()
	q.pending = append(q.pending, candidate)
	q.mu.Unlock()
}

func (q *CandidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain applies every queued candidate in arrival order and clears the
// queue. The first apply error is returned after the remaining candidates
// have still been attempted.
func (q *CandidateQueue) Drain(apply func(webrtc.ICECandidateInit) error) error {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	var firstErr error
	for _, candidate := range pending {
		if err := apply(candidate); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
