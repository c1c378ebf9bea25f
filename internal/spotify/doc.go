// Package spotify is a retrying client for the Spotify Web API player
// endpoints.
//
// # Overview
//
// A Client holds the configured Credentials and the session derived from
// them: an access token obtained from the refresh token, and the id of the
// playback device resolved from the configured device name. Replacing the
// credentials with SetCredentials drops both.
//
// # Requests
//
// Every request goes through a Caller, which performs exactly one HTTP
// exchange and reports it as an Outcome. Status 0 means no response was
// received. HTTPCaller is the production implementation; tests substitute
// their own.
//
// Authenticated calls go through CallWithRetry. Success and non-retryable
// outcomes return immediately. Rate limiting (429), server errors (5xx) and
// transport failures are retried up to RetryPolicy.MaxRetries times, sleeping
// Backoff(n) between attempts. The last outcome is returned as-is.
//
// # Backoff
//
// The pre-jitter delay starts at InitialDelay and is multiplied by Multiplier
// once per retry, stopping at MaxDelay. The final delay moves that value by a
// uniform offset in [0, delay/4), up or down with equal probability.
//
// # Recovery
//
// PlayURI is the only operation with call-level recovery:
//
//   - no token held: fetch one first, fail without playing if that fails
//   - 404: rediscover the device once and retry the play once
//   - 401: refresh the token once and retry the play if the refresh worked
//
// A successful play is followed by a best-effort EnableShuffle whose result
// does not change the reported outcome.
//
// # Decoding
//
// Response bodies are decoded with goccy/go-json. A malformed body or a
// missing field reads as the zero value; no operation returns a decode error.
//
// # Thread Safety
//
// Client is not safe for concurrent use. The application serializes every
// call through the host loop goroutine.
package spotify
