package formula

// DefaultCacheLimit is the number of inserts after which the expression
// cache is dropped wholesale
const DefaultCacheLimit = 10000

// ExpressionCache maps formula text to its parsed tree. It is not an LRU:
// once more than limit trees have been inserted since the last flush, the
// next insert clears everything first. Trees hold positional references,
// so the host clears the cache after every structural edit.
type ExpressionCache struct {
	entries map[string]Expression
	inserts int
	limit   int
	flushes int
}

// NewExpressionCache creates an empty cache. a non-positive limit means
// DefaultCacheLimit.
func NewExpressionCache(limit int) *ExpressionCache {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	return &ExpressionCache{
		entries: make(map[string]Expression),
		limit:   limit,
	}
}

// Get returns the cached tree for formula, parsing and storing it on a
// miss. failed parses are not cached.
func (c *ExpressionCache) Get(formula string, parse func(string) (Expression, error)) (Expression, error) {
	if expr, ok := c.entries[formula]; ok {
		return expr, nil
	}

	expr, err := parse(formula)
	if err != nil {
		return nil, err
	}

	if c.inserts > c.limit {
		c.Clear()
		c.flushes++
	}
	c.entries[formula] = expr
	c.inserts++
	return expr, nil
}

// Clear drops every cached tree
func (c *ExpressionCache) Clear() {
	c.entries = make(map[string]Expression)
	c.inserts = 0
}

// Len is the number of cached trees
func (c *ExpressionCache) Len() int {
	return len(c.entries)
}

// Flushes counts overflow flushes since creation
func (c *ExpressionCache) Flushes() int {
	return c.flushes
}
