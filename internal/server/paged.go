package server

import (
	"net/http"

	"github.com/Pusher91/fieldbutton/internal/domain"
	"github.com/Pusher91/fieldbutton/internal/ndjson"
	"github.com/Pusher91/fieldbutton/internal/server/api"
)

type pageFn[T any] func(cursor int64, limit int) (ndjson.Page[T], error)

func readPaged[T any](
	r *http.Request,
	defaultLimit, maxLimit int,
	fn pageFn[T],
	internalErrMsg string,
) (ndjson.Page[T], *api.APIError) {
	p, apiErr := api.PageParamsFromQuery(r.URL.Query(), defaultLimit, maxLimit)
	if apiErr != nil {
		return ndjson.Page[T]{}, apiErr
	}

	page, err := fn(p.Cursor, p.Limit)
	if err != nil {
		return ndjson.Page[T]{}, api.Internal(internalErrMsg)
	}
	return page, nil
}

func (s *Server) registrationsAPI(r *http.Request) (any, *api.APIError) {
	kind, apiErr := api.Enum(r.URL.Query(), "kind", "all", "all", string(domain.RecordKindResult))
	if apiErr != nil {
		return nil, apiErr
	}
	if s.repo == nil {
		return ndjson.Page[domain.Record]{Items: []domain.Record{}}, nil
	}

	fn := s.repo.RecordsPage
	if kind == string(domain.RecordKindResult) {
		fn = s.repo.ResultsPage
	}

	page, apiErr := readPaged[domain.Record](r, ndjson.DefaultPageLimit, ndjson.MaxPageLimit, fn, "failed to read registrations")
	if apiErr != nil {
		return nil, apiErr
	}
	// The masked token stays in the audit file only.
	for i := range page.Items {
		page.Items[i].Token = ""
	}
	return page, nil
}

func (s *Server) summaryAPI(r *http.Request) (any, *api.APIError) {
	if s.repo == nil {
		return map[string]any{"domains": map[string]any{}}, nil
	}
	return s.repo.Summary(), nil
}
