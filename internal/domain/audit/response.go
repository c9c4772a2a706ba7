package audit

import "time"

type UserRefResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntryResponse es la forma JSON de una entrada de historial.
type EntryResponse struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	User      UserRefResponse `json:"user"`
	Details   string          `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func ToEntryResponses(entries []Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			User:      UserRefResponse{ID: e.Actor.ID, Name: e.Actor.Name},
			Details:   e.Details,
			Timestamp: e.Timestamp,
		})
	}
	return out
}
