package search

// Page size bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is one slice of a ranked list.
type Page struct {
	Items  []ScoredResult
	Offset int
	Limit  int
	Total  int
}

// Paginator clamps page requests to its bounds.
type Paginator struct {
	DefaultLimit int
	MaxLimit     int
}

// Paginate slices list with the stock bounds.
func Paginate(list []ScoredResult, offset, limit int) Page {
	return Paginator{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}.Paginate(list, offset, limit)
}

// Paginate returns list[offset:offset+limit] after clamping. A limit of
// zero or less means the default; an offset past the end yields an empty,
// non-nil page.
func (p Paginator) Paginate(list []ScoredResult, offset, limit int) Page {
	upper := p.MaxLimit
	if upper <= 0 || upper > MaxLimit {
		upper = MaxLimit
	}
	def := p.DefaultLimit
	if def <= 0 || def > upper {
		def = min(DefaultLimit, upper)
	}

	switch {
	case limit <= 0:
		limit = def
	case limit > upper:
		limit = upper
	}
	if offset < 0 {
		offset = 0
	}

	page := Page{Offset: offset, Limit: limit, Total: len(list), Items: []ScoredResult{}}
	if offset >= len(list) {
		return page
	}
	end := min(offset+limit, len(list))
	page.Items = append(page.Items, list[offset:end]...)
	return page
}
