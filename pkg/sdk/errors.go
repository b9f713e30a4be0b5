package fetchr

import "github.com/kailas-cloud/fetchr/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration   = domain.ErrConfiguration
	ErrRateLimited     = domain.ErrTransient
	ErrMalformed       = domain.ErrFormat
	ErrProvider        = domain.ErrProviderError
	ErrInvalidArgument = domain.ErrInvalidArgument
	ErrStorageDisabled = domain.ErrStorageDisabled
	ErrQuotaExceeded   = domain.ErrQuotaExceeded
)

// APIError describes a failed exchange with an external provider.
// Use errors.As() to inspect the status code.
type APIError = domain.APIError
