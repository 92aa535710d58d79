package model

// Page is one page of a paginated collection.
type Page[T any] struct {
	Records     []T
	TotalCount  int
	CurrentPage int
	TotalPages  int
}
