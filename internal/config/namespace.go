package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var digits = regexp.MustCompile(`\d+`)

// VehicleNumber resolves the id of this vehicle. A non-negative explicit id
// wins; otherwise the first integer found in namespace is used.
func VehicleNumber(explicit int, namespace string, log zerolog.Logger) (int, error) {
	if explicit >= 0 {
		return explicit, nil
	}
	name := strings.ReplaceAll(namespace, "/", "")
	matches := digits.FindAllString(name, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("could not identify vehicle number from namespace %q", namespace)
	}
	if len(matches) > 1 {
		log.Warn().Str("namespace", namespace).Strs("candidates", matches).
			Msg("more than one vehicle number in namespace, using the first")
	}
	id, err := strconv.Atoi(matches[0])
	if err != nil {
		return 0, fmt.Errorf("invalid vehicle number %q: %w", matches[0], err)
	}
	log.Info().Int("vehicle", id).Msg("using vehicle number identified from namespace")
	return id, nil
}
