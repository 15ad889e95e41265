// Package auth resolves the caller's identity from a trusted upstream.
//
// Authentication itself happens outside this service: a proxy in front of
// it verifies the session and forwards the user ID in a header (X-User-ID
// by default). Middleware parses that header, optionally provisions the
// user on first sight, and stores the ID in the request context:
//
//	r.Use(auth.Middleware(auth.NewHeaderResolver(""),
//		auth.WithProvisioner(subscriptions),
//		auth.WithLogger(log),
//	))
//
//	userID := auth.MustUserID(r.Context())
package auth
