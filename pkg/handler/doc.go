// Package handler turns request-to-response functions into http.HandlerFuncs
// that speak a single JSON envelope:
//
//	{"data": ..., "meta": {...}}
//	{"error": {"code": "not_found", "message": "...", "details": {...}}}
//
// Handlers return a Response; errors returned by binding or rendering, and
// errors passed to JSONError, are mapped to HTTP status codes through
// HTTPError values and an optional ErrorMapper:
//
//	mux.Get("/entries/{id}", handler.Wrap(func(r *http.Request) handler.Response {
//		entry, err := svc.GetEntry(r.Context(), userID, id)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(entry)
//	}, handler.WithErrorMapper(mapJournalErrors)))
package handler
