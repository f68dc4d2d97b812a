// Package api provides the HTTP client for the message server's key
// registry and message transport. It handles bearer authentication,
// request/response serialization, and automatic retry with exponential
// backoff for transient failures.
//
// # Endpoints
//
// All endpoints live under one function root (see [DefaultBaseURL]):
//
//   - register-key (POST): publish a public key and optional wrapped backup.
//   - get-users (GET): list users with their public keys.
//   - send-message (POST): store a sealed message.
//   - get-messages (GET): read a conversation, oldest first.
//
// The server only ever sees public keys, wrapped key blobs, and sealed
// messages. Nothing passed through this package is secret.
//
// # Retry Behavior
//
// Requests are retried up to 3 times by default on network failures and on
// these HTTP status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests (honoring Retry-After)
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// The delay doubles with each attempt starting at 500ms, with 20% jitter,
// capped at 10s. Pass [NoRetry] to disable retries.
//
// [Client.SendMessage] is never retried. The server stores every accepted
// request as a new message, so a retry could deliver it twice.
//
// # Error Handling
//
// Error responses become [APIError] values that match sentinels with
// errors.Is:
//
//   - [ErrBadRequest]: missing fields (400).
//   - [ErrUnauthorized]: missing or expired token (401).
//   - [ErrNotFound]: unknown endpoint (404).
//   - [ErrRateLimited]: rate limit exceeded (429).
//
// Transport failures become [NetworkError].
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package api
