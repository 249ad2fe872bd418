package console

import (
	"errors"
	"strings"

	"swagtest/internal/model"
)

var ErrInvalidLocation = errors.New("only JSON swagger files are supported")

// ValidateLocation accepts anything that ends in .json, ignoring case.
func ValidateLocation(location string) error {
	loc := strings.TrimSpace(location)
	if len(loc) <= len(".json") || !strings.HasSuffix(strings.ToLower(loc), ".json") {
		return ErrInvalidLocation
	}
	return nil
}

// Visible reports whether an endpoint card with path stays shown for the
// typed filter. Plain substring match, case-insensitive.
func Visible(path, filter string) bool {
	return strings.Contains(strings.ToLower(path), strings.ToLower(filter))
}

func Filter(endpoints []model.Endpoint, filter string) []model.Endpoint {
	out := make([]model.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if Visible(ep.Path, filter) {
			out = append(out, ep)
		}
	}
	return out
}
