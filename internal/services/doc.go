// Package services defines the [Source] and [Destination] interfaces for music
// streaming providers and implements them for Spotify and TIDAL.
//
// # Spotify Implementation
//
// [SpotifyService] is a read-only [Source] over the zmb3/spotify Web API client.
// It authenticates with the OAuth2 authorization-code flow ([OAuthService]); the
// callback is served by the internal/server package. Paginated endpoints are
// followed with NextPage, followed artists through the "after" cursor.
//
// # TIDAL Implementation
//
// [TidalService] is the [Destination]. It authenticates with the OAuth2
// device-authorization flow ([DeviceAuthService]): the user enters a code on
// link.tidal.com while the CLI polls for the token. The session endpoint
// resolves the user id and country code that every catalog call needs.
// Requests share one [rate.Limiter] so parallel matcher workers cannot exceed
// the configured request rate.
//
// Playlist writes are conditional on the playlist ETag; a write that races
// another change is retried once with a fresh ETag.
//
// # Token Refresh
//
// Both clients wrap their token in an auto-refreshing [oauth2.TokenSource].
// Callers register a callback with SetTokenRefreshCallback ([TokenNotifier])
// to persist refreshed tokens back to the config file.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : OAuthenticate() not called
//   - [shared.ErrTokenExpired] : 401 from the provider, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrPlaylistNotFound] : Playlist ID not found
package services
