package api

import "github.com/e2eechat/client-go/internal/apierrors"

// Error types and sentinels are shared with the public package.
type (
	APIError     = apierrors.APIError
	NetworkError = apierrors.NetworkError
)

var (
	ErrMissingToken = apierrors.ErrMissingToken
	ErrUnauthorized = apierrors.ErrUnauthorized
	ErrBadRequest   = apierrors.ErrBadRequest
	ErrNotFound     = apierrors.ErrNotFound
	ErrRateLimited  = apierrors.ErrRateLimited
)
