package directions

import (
    "net/url"
    "strings"
)

const mapsDirBase = "https://www.google.com/maps/dir/?api=1"

// DriverLink composes a shareable Google Maps navigation URL for the given
// stop sequence. Waypoints exclude origin and destination and keep the order
// they are passed in.
func DriverLink(origin, destination string, waypoints []string) string {
    q := url.Values{}
    q.Set("origin", origin)
    q.Set("destination", destination)
    if len(waypoints) > 0 {
        q.Set("waypoints", strings.Join(waypoints, "|"))
    }
    return mapsDirBase + "&" + q.Encode()
}
