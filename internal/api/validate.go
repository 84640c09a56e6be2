package api

import (
    "fmt"
    "strings"

    "logiswift/internal/model"
)

// parseAddresses extracts and normalizes the stop list from an optimize
// request, enforcing the stop count bounds.
func parseAddresses(req *model.OptimizeRequest) ([]string, error) {
    var lines []string
    if strings.TrimSpace(req.AddressesText) != "" {
        lines = strings.Split(req.AddressesText, "\n")
    } else {
        lines = req.Addresses
    }
    addrs := normalizeAddresses(lines)
    if len(addrs) == 0 {
        return nil, fmt.Errorf("no addresses provided; paste %d-%d addresses, one per line", minStops, maxStops)
    }
    if len(addrs) < minStops || len(addrs) > maxStops {
        return nil, fmt.Errorf("provide between %d and %d unique addresses (you gave %d)", minStops, maxStops, len(addrs))
    }
    return addrs, nil
}
