package models

// WatchEvent is one entry of a watch stream.  Type is one of change, bookmark, error.
type WatchEvent struct {
	Kind  string      `json:"kind,omitempty"`
	Type  string      `json:"type"`
	Value interface{} `json:"value,omitempty"`
}
