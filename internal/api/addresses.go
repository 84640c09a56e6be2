package api

import (
    "fmt"
    "strings"
)

const (
    minStops = 5
    maxStops = 10
)

// normalizeAddresses trims lines, drops empties, and dedupes
// case-insensitively while preserving first-seen order.
func normalizeAddresses(lines []string) []string {
    cleaned := make([]string, 0, len(lines))
    seen := map[string]struct{}{}
    for _, l := range lines {
        l = strings.TrimSpace(l)
        if l == "" { continue }
        key := strings.ToLower(l)
        if _, ok := seen[key]; ok { continue }
        seen[key] = struct{}{}
        cleaned = append(cleaned, l)
    }
    return cleaned
}

// kmString renders meters as "12.34 km".
func kmString(m int) string {
    return fmt.Sprintf("%.2f km", float64(m)/1000)
}

// humanDuration renders seconds as "45s", "7m", or "1h 05m".
func humanDuration(s int) string {
    if s < 60 {
        return fmt.Sprintf("%ds", s)
    }
    m := s / 60
    h := m / 60
    m = m % 60
    if h > 0 {
        return fmt.Sprintf("%dh %02dm", h, m)
    }
    return fmt.Sprintf("%dm", m)
}
