package search

// Result is a single store hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Floor       int    `json:"floor"`
	Block       string `json:"block"`
	ImageURL    string `json:"imageUrl"`
}

// Query describes a search request.
type Query struct {
	Text     string
	Category string
	Block    string
	Floor    *int
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a store search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// StoreRecord is the data we index for a store entry.
type StoreRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Floor       int    `json:"floor"`
	Block       string `json:"block"`
	ImageURL    string `json:"imageUrl"`
}
