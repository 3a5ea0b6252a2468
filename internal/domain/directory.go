package domain

// ApplicationType is the kind of content an app is currently showing.
type ApplicationType string

const (
	TypeTimeline    ApplicationType = "timeline"
	TypeMapExplorer ApplicationType = "mapExplorer"
	TypeNodeNetwork ApplicationType = "nodeNetwork"
)

// ContextTimeline is the context every selection query runs in.
const ContextTimeline = TypeTimeline

// ParseApplicationType converts a string to an ApplicationType.
func ParseApplicationType(s string) (ApplicationType, bool) {
	switch ApplicationType(s) {
	case TypeTimeline, TypeMapExplorer, TypeNodeNetwork:
		return ApplicationType(s), true
	default:
		return "", false
	}
}

// AppState is one entry of the directory snapshot. The slice returned by
// StatesFor is index-stable: position i describes app i.
type AppState struct {
	AppID int             `json:"appId" yaml:"app"`
	Group *int            `json:"group,omitempty" yaml:"group,omitempty"`
	Type  ApplicationType `json:"type" yaml:"type"`
}

// SameGroup reports whether two optional group ids are both absent or equal.
func SameGroup(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// GroupDirectory answers group membership questions. It is owned by an
// external membership service; implementations must be safe for concurrent use.
type GroupDirectory interface {
	GroupFor(appID int, context ApplicationType) *int
	StatesFor(context ApplicationType) []AppState
	TypeFor(appID int) ApplicationType
}
