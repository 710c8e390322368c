package pagination

const (
	// DefaultPerPage is the page size when none is requested.
	DefaultPerPage = 25
	// MaxPerPage caps how many rows one search may return.
	MaxPerPage = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Offset  int `json:"offset"`
	PerPage int `json:"perPage"`
}

// Normalize enforces the default and maximum page sizes.
func (p Params) Normalize() Params {
	if p.Offset < 0 {
		p.Offset = 0
	}
	switch {
	case p.PerPage <= 0:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

// Page is a window of search results with the total match count.
type Page[T any] struct {
	Items   []T `json:"items"`
	Offset  int `json:"offset"`
	PerPage int `json:"perPage"`
	Total   int `json:"total"`
}

// NewPage wraps items, replacing a nil slice so it encodes as [].
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Offset: params.Offset, PerPage: params.PerPage, Total: int(total)}
}
