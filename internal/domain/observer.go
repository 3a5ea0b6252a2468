package domain

// Observer receives net state changes for the local display slot only.
// Callbacks run on the engine goroutine and must not block or call back into
// the engine synchronously.
type Observer interface {
	OnItemSelectionChanged(index int, selected bool)
	OnReplaceSelection(selection []TimelineSelection)
	OnItemsHighlighted(indices []int, highlighted bool)
	OnReplaceHighlighted(indices []int)
}
