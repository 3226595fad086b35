package search

import "context"

// Sorter is the single consumer of the batch queue. It merges each batch
// into the match list and fires the change hook when the list grew.
type Sorter struct {
	batches *Queue[Batch]
	list    *MatchList
	changed func()
}

// NewSorter creates a sorter merging batches into list. changed may be nil.
func NewSorter(batches *Queue[Batch], list *MatchList, changed func()) *Sorter {
	return &Sorter{batches: batches, list: list, changed: changed}
}

// Run merges batches until ctx is done or the batch queue closes.
func (s *Sorter) Run(ctx context.Context) error {
	for {
		batch, ok := s.batches.Pop(ctx)
		if !ok {
			return nil
		}
		if s.list.Merge(batch) && s.changed != nil {
			s.changed()
		}
		s.batches.Done()
	}
}
