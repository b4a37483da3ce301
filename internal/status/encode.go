// internal/status/encode.go
package status

import "time"

// Document is the JSON form of a Snapshot.
type Document struct {
	Health         string     `json:"health"`
	LastErrorCode  uint16     `json:"lastErrorCode"`
	SecondsInError uint16     `json:"secondsInError"`
	Cycles         uint64     `json:"cycles"`
	State          string     `json:"state"`
	AlarmCID       *uint16    `json:"alarmCid,omitempty"`
	AlarmName      string     `json:"alarmName,omitempty"`
	Sweeps         int        `json:"sweeps"`
	Reads          int        `json:"reads"`
	ReadErrors     int        `json:"readErrors"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Encode converts a Snapshot into its JSON document.
// No IO. No side effects.
func Encode(s Snapshot) Document {
	d := Document{
		Health:         HealthName(s.Health),
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
		Cycles:         s.Cycles,
		State:          s.Last.State.String(),
		Sweeps:         s.Last.Sweeps,
		Reads:          s.Last.Reads,
		ReadErrors:     s.Last.ReadErrors,
	}

	if s.Last.State == StateAlarm {
		cid := uint16(s.Last.AlarmCID)
		d.AlarmCID = &cid
		d.AlarmName = s.Last.AlarmName
	}
	if !s.Last.StartedAt.IsZero() {
		t := s.Last.StartedAt
		d.StartedAt = &t
	}
	if !s.Last.FinishedAt.IsZero() {
		t := s.Last.FinishedAt
		d.FinishedAt = &t
	}
	return d
}
