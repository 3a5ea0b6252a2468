package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pscheid92/selectionsync/internal/domain"
)

// Kind identifies the operation a Message carries.
type Kind string

const (
	KindSelect     Kind = "select"
	KindHighlight  Kind = "highlight"
	KindResetGroup Kind = "resetGroup"
	KindResetAll   Kind = "resetAll"
	KindSync       Kind = "sync"
)

// Message is the broadcast envelope. Optional fields are pointers so that
// "absent" and "zero" can be told apart during validation.
type Message struct {
	ID          string                  `json:"id,omitempty"`
	Kind        Kind                    `json:"kind"`
	Origin      *int                    `json:"origin,omitempty"`
	Index       *int                    `json:"index,omitempty"`
	Selected    *bool                   `json:"selected,omitempty"`
	Group       *int                    `json:"group,omitempty"`
	ContextType *domain.ApplicationType `json:"contextType,omitempty"`
	Indices     []int                   `json:"indices"`
}

func NewSelect(origin, index int, selected bool, group *int) Message {
	return Message{ID: uuid.NewString(), Kind: KindSelect, Origin: &origin, Index: &index, Selected: &selected, Group: copyInt(group)}
}

func NewHighlight(origin, index int, group *int) Message {
	return Message{ID: uuid.NewString(), Kind: KindHighlight, Origin: &origin, Index: &index, Group: copyInt(group)}
}

func NewResetGroup(group int, contextType domain.ApplicationType) Message {
	return Message{ID: uuid.NewString(), Kind: KindResetGroup, Group: &group, ContextType: &contextType}
}

func NewResetAll() Message {
	return Message{ID: uuid.NewString(), Kind: KindResetAll}
}

// NewSync lists every index origin currently has selected. An empty list is
// meaningful: it clears all of origin's selections in scope.
func NewSync(origin int, indices []int, group *int) Message {
	if indices == nil {
		indices = []int{}
	}
	return Message{ID: uuid.NewString(), Kind: KindSync, Origin: &origin, Indices: indices, Group: copyInt(group)}
}

// Validate checks that every field required by the message kind is present
// and that app ids and row indices are not negative.
func (m Message) Validate() error {
	if (m.Origin != nil && *m.Origin < 0) || (m.Index != nil && *m.Index < 0) {
		return fmt.Errorf("%w: negative origin or index", domain.ErrMalformedMessage)
	}
	switch m.Kind {
	case KindSelect:
		if m.Origin == nil || m.Index == nil || m.Selected == nil {
			return fmt.Errorf("%w: select requires origin, index and selected", domain.ErrMalformedMessage)
		}
	case KindHighlight:
		// A grouped highlight needs no origin; an ungrouped one lands on the origin's slot.
		if m.Index == nil || (m.Origin == nil && m.Group == nil) {
			return fmt.Errorf("%w: highlight requires index and an origin or a group", domain.ErrMalformedMessage)
		}
	case KindResetGroup:
		if m.Group == nil || m.ContextType == nil {
			return fmt.Errorf("%w: resetGroup requires group and contextType", domain.ErrMalformedMessage)
		}
		if _, ok := domain.ParseApplicationType(string(*m.ContextType)); !ok {
			return fmt.Errorf("%w: unknown context type %q", domain.ErrMalformedMessage, *m.ContextType)
		}
	case KindResetAll:
	case KindSync:
		if m.Origin == nil || m.Indices == nil {
			return fmt.Errorf("%w: sync requires origin and indices", domain.ErrMalformedMessage)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrMalformedMessage, m.Kind)
	}
	return nil
}

// Encode validates and marshals a message for the bus.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Decode unmarshals and validates a message received from the bus.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
