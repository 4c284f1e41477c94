package store

import "sort"

// MemoryStore is an in-process Store, used by tests and ephemeral runs
type MemoryStore struct {
	stores map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stores: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) table(name string) map[string][]byte {
	t, ok := m.stores[name]
	if !ok {
		t = make(map[string][]byte)
		m.stores[name] = t
	}
	return t
}

// Put implements Store
func (m *MemoryStore) Put(collection, keyField string, objects []Keyed) ([]PutResult, error) {
	results, err := m.Apply(single(collection, keyField, objects, false))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Replace implements Store
func (m *MemoryStore) Replace(collection, keyField string, objects []Keyed) ([]PutResult, error) {
	results, err := m.Apply(single(collection, keyField, objects, true))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Apply implements Store
func (m *MemoryStore) Apply(writes ...Write) ([][]PutResult, error) {
	batch, err := prepareAll(writes)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	for _, p := range batch {
		if p.replace {
			m.stores[p.name] = make(map[string][]byte, len(p.entries))
		}
		t := m.table(p.name)
		for _, e := range p.entries {
			t[e.key] = e.value
		}
	}

	return resultsOf(batch), nil
}

// Get implements Store
func (m *MemoryStore) Get(name, key string, dst interface{}) (bool, error) {
	mu.Lock()
	data, ok := m.stores[name][key]
	mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := decode(data, dst); err != nil {
		return false, storageErr("get", name, err)
	}
	return true, nil
}

// Set implements Store
func (m *MemoryStore) Set(name, key string, value interface{}) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	m.table(name)[key] = data
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(name, key string) error {
	mu.Lock()
	defer mu.Unlock()

	t, ok := m.stores[name]
	if !ok {
		return notFound(name, key)
	}
	if _, ok := t[key]; !ok {
		return notFound(name, key)
	}
	delete(t, key)
	return nil
}

// Keys implements Store
func (m *MemoryStore) Keys(name string) ([]string, error) {
	mu.Lock()
	defer mu.Unlock()

	keys := make([]string, 0, len(m.stores[name]))
	for k := range m.stores[name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
