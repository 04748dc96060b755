// Package reconcile joins live sessions with the subscriber roster.
package reconcile

import (
	"time"

	"github.com/HerbHall/linkstat/pkg/models"
)

// Quality is a coarse label derived from session uptime.
type Quality string

const (
	QualityFresh       Quality = "fresh"       // under 5 minutes, likely a reconnect
	QualityRecent      Quality = "recent"      // under an hour
	QualityStable      Quality = "stable"      // under a day
	QualityEstablished Quality = "established" // a day or more
)

// QualityFor labels a session by how long it has been up.
func QualityFor(uptime time.Duration) Quality {
	switch {
	case uptime < 5*time.Minute:
		return QualityFresh
	case uptime < time.Hour:
		return QualityRecent
	case uptime < 24*time.Hour:
		return QualityStable
	default:
		return QualityEstablished
	}
}

// State is the reconciled view of one subscriber.
type State struct {
	SubscriberID string                  `json:"subscriber_id"`
	LoginName    string                  `json:"login_name"`
	Status       models.SubscriberStatus `json:"status"`
	DeviceID     string                  `json:"device_id,omitempty"`
	Online       bool                    `json:"online"`
	Quality      Quality                 `json:"quality,omitempty"`
	Session      *models.Session         `json:"session,omitempty"`
}

// Reconcile derives each subscriber's online state, in roster order.
//
// A subscriber is online when some session's login name equals theirs
// exactly and their assigned device is not in disabled. When several devices
// report the same login, the first session in the list wins; sessions arrive
// in registry order so the choice is deterministic.
func Reconcile(subscribers []models.Subscriber, sessions []models.Session, disabled map[string]bool) []State {
	byLogin := make(map[string]int, len(sessions))
	for i, s := range sessions {
		if s.LoginName == "" {
			continue
		}
		if _, seen := byLogin[s.LoginName]; !seen {
			byLogin[s.LoginName] = i
		}
	}

	states := make([]State, 0, len(subscribers))
	for _, sub := range subscribers {
		st := State{
			SubscriberID: sub.ID,
			LoginName:    sub.LoginName,
			Status:       sub.Status,
			DeviceID:     sub.DeviceID,
		}
		if i, ok := byLogin[sub.LoginName]; ok && !disabled[sub.DeviceID] {
			session := sessions[i]
			st.Online = true
			st.Session = &session
			st.Quality = QualityFor(session.Uptime.Std())
		}
		states = append(states, st)
	}
	return states
}

// Summary counts reconciled subscribers.
type Summary struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// Summarize counts online and offline subscribers in states.
func Summarize(states []State) Summary {
	s := Summary{Total: len(states)}
	for _, st := range states {
		if st.Online {
			s.Online++
		}
	}
	s.Offline = s.Total - s.Online
	return s
}

// Find returns the state for subscriberID.
func Find(states []State, subscriberID string) (State, bool) {
	for _, st := range states {
		if st.SubscriberID == subscriberID {
			return st, true
		}
	}
	return State{}, false
}
