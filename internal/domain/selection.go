package domain

import "sort"

// TimelineSelection identifies one selected timeline row and the app that selected it.
type TimelineSelection struct {
	AppID int `json:"appId"`
	Index int `json:"index"`
}

// SlotSnapshot is a copy of one app slot's state, safe to hand out of the engine.
type SlotSnapshot struct {
	AppID       int                 `json:"appId"`
	Selection   []TimelineSelection `json:"selection"`
	Highlighted map[int]int         `json:"highlighted"`
}

// SortSelections orders selections by app then index so snapshots and
// callbacks are deterministic.
func SortSelections(s []TimelineSelection) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].AppID != s[j].AppID {
			return s[i].AppID < s[j].AppID
		}
		return s[i].Index < s[j].Index
	})
}
