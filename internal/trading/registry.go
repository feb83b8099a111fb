package trading

import "sync"

// PairPositions - идентификаторы ног открытой пары
type PairPositions struct {
	LongPositionID  string
	ShortPositionID string
}

// PairRegistry - реестр открытых пар: pairID -> идентификаторы позиций.
// Мутируется только координатором внутри протокола открытия/закрытия.
type PairRegistry struct {
	mu      sync.RWMutex
	entries map[int64]PairPositions
}

// NewPairRegistry создает пустой реестр
func NewPairRegistry() *PairRegistry {
	return &PairRegistry{entries: make(map[int64]PairPositions)}
}

// Get возвращает запись пары и признак ее наличия
func (r *PairRegistry) Get(pairID int64) (PairPositions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[pairID]
	return entry, ok
}

// Put записывает идентификаторы ног пары
func (r *PairRegistry) Put(pairID int64, longPositionID, shortPositionID string) {
	r.mu.Lock()
	r.entries[pairID] = PairPositions{
		LongPositionID:  longPositionID,
		ShortPositionID: shortPositionID,
	}
	r.mu.Unlock()
}

// Remove удаляет запись пары
func (r *PairRegistry) Remove(pairID int64) {
	r.mu.Lock()
	delete(r.entries, pairID)
	r.mu.Unlock()
}

// Count возвращает количество отслеживаемых пар
func (r *PairRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// PairIDs возвращает идентификаторы всех отслеживаемых пар
func (r *PairRegistry) PairIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
