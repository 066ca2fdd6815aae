package query

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// Paginate returns the neighbouring page hints for a page of size limit
// over total matches.
func Paginate(page, limit int, total int64) Pagination {
	var p Pagination
	if limit <= 0 {
		return p
	}
	// page*limit < total, without the multiplication.
	if pages := (total + int64(limit) - 1) / int64(limit); int64(page) < pages {
		p.Next = &PageRef{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		p.Prev = &PageRef{Page: page - 1, Limit: limit}
	}
	return p
}
