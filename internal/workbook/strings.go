package workbook

// StringTable interns the text of string and formula cells. repeated labels
// and formulas filled down a column share one copy; the reference count lets
// a cell release its text when it is overwritten or removed.
type StringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

// NewStringTable creates a new string table
func NewStringTable() *StringTable {
	return &StringTable{
		ids:       make(map[string]uint32),
		values:    make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 marks "no string" in chunk arrays
	}
}

// Intern adds s or takes another reference to it. returns its ID.
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++
	return id
}

// Lookup retrieves a string by its ID
func (st *StringTable) Lookup(id uint32) (string, bool) {
	s, exists := st.values[id]
	return s, exists
}

// Release drops one reference to id; the string is forgotten with its last
// reference. returns true when that happened.
func (st *StringTable) Release(id uint32) bool {
	s, exists := st.values[id]
	if !exists {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}
	delete(st.ids, s)
	delete(st.values, id)
	delete(st.refCounts, id)
	return true
}

// References returns the reference count for id
func (st *StringTable) References(id uint32) int {
	return st.refCounts[id]
}

// Len returns the number of distinct strings
func (st *StringTable) Len() int {
	return len(st.ids)
}
