package directions

import "context"

// Mock fabricates plausible results without any network calls. The permutation
// is fixed (middle stops reversed) so that demo output is reproducible.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

const (
    mockLegDistanceM   = 3000
    mockLegDurationSec = 600
    // optimized traversals pretend to shave 15% distance and 12% duration
    mockDistanceCut = 0.15
    mockDurationCut = 0.12
)

func (m *Mock) Route(_ context.Context, origin, destination string, waypoints []string, optimize bool) (Summary, error) {
    order := make([]string, 0, len(waypoints)+2)
    order = append(order, origin)
    var perm []int
    if optimize {
        for i := len(waypoints) - 1; i >= 0; i-- {
            order = append(order, waypoints[i])
            perm = append(perm, i)
        }
    } else {
        order = append(order, waypoints...)
    }
    order = append(order, destination)

    legs := len(order) - 1
    if legs < 1 { legs = 1 }
    dist := legs * mockLegDistanceM
    dur := legs * mockLegDurationSec
    if optimize {
        dist -= int(mockDistanceCut * float64(dist))
        dur -= int(mockDurationCut * float64(dur))
    }
    return Summary{Order: order, DistanceM: dist, DurationSec: dur, WaypointOrder: perm}, nil
}
