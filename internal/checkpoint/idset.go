package checkpoint

// IDSet is an insertion-ordered set of source message ids. Trim drops the
// oldest entries so the persisted object stays bounded.
type IDSet struct {
	order []string
	index map[string]struct{}
}

func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add appends id unless it is already present. Empty ids are ignored.
func (s *IDSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Slice returns the ids oldest first.
func (s *IDSet) Slice() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet {
	return NewIDSet(s.Slice()...)
}

// Trim keeps the newest max ids. max <= 0 disables trimming.
func (s *IDSet) Trim(max int) int {
	if max <= 0 || len(s.order) <= max {
		return 0
	}
	drop := len(s.order) - max
	for _, id := range s.order[:drop] {
		delete(s.index, id)
	}
	s.order = append([]string(nil), s.order[drop:]...)
	return drop
}
