package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/linkstat/pkg/models"
)

// FakeAdapter is a scriptable session source keyed by device ID. It
// satisfies poller.Adapter. Unscripted devices report no sessions.
type FakeAdapter struct {
	mu       sync.Mutex
	sessions map[string][]models.Session
	errs     map[string]error
	delays   map[string]time.Duration
	hang     map[string]bool
	calls    map[string]int
	release  chan struct{}
	once     sync.Once
}

// NewFakeAdapter returns an empty FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		sessions: make(map[string][]models.Session),
		errs:     make(map[string]error),
		delays:   make(map[string]time.Duration),
		hang:     make(map[string]bool),
		calls:    make(map[string]int),
		release:  make(chan struct{}),
	}
}

// SetSessions scripts the sessions returned for deviceID.
func (f *FakeAdapter) SetSessions(deviceID string, sessions ...models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[deviceID] = sessions
	delete(f.errs, deviceID)
}

// SetError scripts a failure for deviceID.
func (f *FakeAdapter) SetError(deviceID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[deviceID] = err
}

// SetDelay makes calls for deviceID wait d (or until ctx is done) first.
func (f *FakeAdapter) SetDelay(deviceID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[deviceID] = d
}

// Hang makes calls for deviceID block, ignoring ctx, until Release.
func (f *FakeAdapter) Hang(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[deviceID] = true
}

// Release unblocks every hung call.
func (f *FakeAdapter) Release() {
	f.once.Do(func() { close(f.release) })
}

// Calls returns how many times deviceID was queried.
func (f *FakeAdapter) Calls(deviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[deviceID]
}

// TotalCalls returns the number of queries across all devices.
func (f *FakeAdapter) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// ActiveSessions implements poller.Adapter.
func (f *FakeAdapter) ActiveSessions(ctx context.Context, device models.Device) ([]models.Session, error) {
	f.mu.Lock()
	f.calls[device.ID]++
	sessions := append([]models.Session(nil), f.sessions[device.ID]...)
	err := f.errs[device.ID]
	delay := f.delays[device.ID]
	hang := f.hang[device.ID]
	f.mu.Unlock()

	if hang {
		<-f.release
		return nil, context.Canceled
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
