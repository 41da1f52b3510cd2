package docutray

import (
	"context"
	"errors"
	"iter"
)

// ErrNoMorePages is returned by NextPage when the collection is exhausted.
var ErrNoMorePages = errors.New("docutray: no more pages")

// Pagination describes the position of a page within a collection.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Page is one page of a list result. It remembers how it was fetched, so
// the next page can be requested without repeating the query parameters.
type Page[T any] struct {
	Items      []T
	Pagination Pagination

	fetch func(ctx context.Context, page int) (*Page[T], error)
}

// listEnvelope is the wire shape of every list endpoint.
type listEnvelope[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func newPage[T any](env listEnvelope[T], fetch func(ctx context.Context, page int) (*Page[T], error)) *Page[T] {
	return &Page[T]{
		Items:      env.Data,
		Pagination: env.Pagination,
		fetch:      fetch,
	}
}

// HasNextPage reports whether more items exist past this page.
func (p *Page[T]) HasNextPage() bool {
	return p.Pagination.Page*p.Pagination.Limit < p.Pagination.Total
}

// NextPage fetches the page after this one. Returns ErrNoMorePages when the
// collection is exhausted.
func (p *Page[T]) NextPage(ctx context.Context) (*Page[T], error) {
	if !p.HasNextPage() {
		return nil, ErrNoMorePages
	}

	return p.fetch(ctx, p.Pagination.Page+1)
}

// Pages iterates over this page and every following one. Pages are fetched
// lazily: breaking out of the loop stops further requests.
func (p *Page[T]) Pages(ctx context.Context) iter.Seq2[*Page[T], error] {
	return func(yield func(*Page[T], error) bool) {
		current := p
		for {
			if !yield(current, nil) {
				return
			}

			if !current.HasNextPage() {
				return
			}

			next, err := current.fetch(ctx, current.Pagination.Page+1)
			if err != nil {
				yield(nil, err)
				return
			}

			current = next
		}
	}
}

// All iterates over every item on this page and all following pages,
// fetching the next page only when the current one runs out.
func (p *Page[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.Pages(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}
