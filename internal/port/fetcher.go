package port

import (
	"context"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

// NoRange requests the whole resource.
const NoRange int64 = -1

// Fetcher issues GET requests for remote objects.
type Fetcher interface {
	// Get requests url. If rangeStart >= 0 an open-ended Range header
	// "bytes=<rangeStart>-" is attached. Failures expected to clear up on retry
	// are returned as *domain.TransientError; anything else is fatal.
	Get(ctx context.Context, url string, rangeStart int64) (*domain.RemoteStream, error)
}
