// Package server provides the small HTTP stack behind browser-based authorization.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the OAuth2 authorization-code flow used for Spotify.
// It validates the state parameter, exchanges the code for a token and delivers
// the result on a channel. Only the first callback is processed.
//
// The handler answers the path of the configured redirect URL, and [CallbackAddr]
// derives the listen address from the same URL so the two cannot drift apart.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] over [http.ServeMux] with method filtering and
// a [Middleware] stack; [Logging] is the only middleware in use.
//
// # Lifecycle
//
// [Listen] binds the address before returning and serves in the background;
// `tdx spotify auth` shuts the [Server] down as soon as a result arrives or the
// two minute wait expires.
package server
