package selection

import (
	"log/slog"

	"github.com/pscheid92/selectionsync/internal/domain"
)

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnItemSelectionChanged(int, bool) {}
func (NopObserver) OnReplaceSelection([]domain.TimelineSelection) {}
func (NopObserver) OnItemsHighlighted([]int, bool) {}
func (NopObserver) OnReplaceHighlighted([]int) {}

// MultiObserver forwards every notification to each observer in order.
type MultiObserver []domain.Observer

func (m MultiObserver) OnItemSelectionChanged(index int, selected bool) {
	for _, o := range m {
		o.OnItemSelectionChanged(index, selected)
	}
}

func (m MultiObserver) OnReplaceSelection(selection []domain.TimelineSelection) {
	for _, o := range m {
		o.OnReplaceSelection(selection)
	}
}

func (m MultiObserver) OnItemsHighlighted(indices []int, highlighted bool) {
	for _, o := range m {
		o.OnItemsHighlighted(indices, highlighted)
	}
}

func (m MultiObserver) OnReplaceHighlighted(indices []int) {
	for _, o := range m {
		o.OnReplaceHighlighted(indices)
	}
}

// LogObserver writes each notification at debug level.
type LogObserver struct{}

func (LogObserver) OnItemSelectionChanged(index int, selected bool) {
	slog.Debug("Item selection changed", "index", index, "selected", selected)
}

func (LogObserver) OnReplaceSelection(selection []domain.TimelineSelection) {
	slog.Debug("Selection replaced", "count", len(selection))
}

func (LogObserver) OnItemsHighlighted(indices []int, highlighted bool) {
	slog.Debug("Items highlighted", "indices", indices, "highlighted", highlighted)
}

func (LogObserver) OnReplaceHighlighted(indices []int) {
	slog.Debug("Highlight replaced", "count", len(indices))
}
