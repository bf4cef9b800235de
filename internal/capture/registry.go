package capture

import "sync"

// Category pairs a semantic class label with its stable integer id. Ids are
// assigned in first-seen order starting at zero, so a category's id doubles
// as its line number in a YOLO class-index file.
type Category struct {
	ID    int
	Label string
}

// CategoryRegistry maps category labels to stable integer ids, built
// incrementally as labels are observed during a recording. Categories are
// never removed within a session: a label seen once keeps its id even if no
// later frame uses it.
type CategoryRegistry struct {
	mu     sync.Mutex
	ids    map[string]int
	labels []string
}

// NewCategoryRegistry returns an empty registry.
func NewCategoryRegistry() *CategoryRegistry {
	return &CategoryRegistry{ids: make(map[string]int)}
}

// Register returns the id for label, assigning the next free id on first
// sight.
func (r *CategoryRegistry) Register(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[label]; ok {
		return id
	}
	id := len(r.labels)
	r.ids[label] = id
	r.labels = append(r.labels, label)
	return id
}

// Lookup returns the id for label and whether it has been registered.
func (r *CategoryRegistry) Lookup(label string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[label]
	return id, ok
}

// Len returns the number of registered categories.
func (r *CategoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.labels)
}

// Categories returns all registered categories ordered by id.
func (r *CategoryRegistry) Categories() []Category {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Category, len(r.labels))
	for i, label := range r.labels {
		out[i] = Category{ID: i, Label: label}
	}
	return out
}

// reset drops all registered categories.
func (r *CategoryRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]int)
	r.labels = nil
}
