package websocket

import "github.com/pscheid92/selectionsync/internal/domain"

// Event types sent to display clients.
const (
	EventItemSelection      = "itemSelection"
	EventReplaceSelection   = "replaceSelection"
	EventItemsHighlighted   = "itemsHighlighted"
	EventReplaceHighlighted = "replaceHighlighted"
)

// Event is the JSON frame pushed to every connected client.
type Event struct {
	Type        string                     `json:"type"`
	Index       *int                       `json:"index,omitempty"`
	Selected    *bool                      `json:"selected,omitempty"`
	Selection   []domain.TimelineSelection `json:"selection,omitempty"`
	Indices     []int                      `json:"indices,omitempty"`
	Highlighted *bool                      `json:"highlighted,omitempty"`
}
