package response

// Page is one window of a list plus the numbers a client needs to fetch the next one
type Page[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageMeta `json:"pagination"`
}

type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func NewPage[T any](data []T, page, perPage int, total int64) *Page[T] {
	if data == nil {
		data = []T{}
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	return &Page[T]{
		Data: data,
		Pagination: PageMeta{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
}
