package draft

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TaxRateFromPercent parses a user-facing percentage ("19", "19,5") into a
// stored fraction (0.19, 0.195).
func TaxRateFromPercent(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, errors.New("draft: empty tax rate")
	}
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(err, "draft: parse tax rate")
	}
	if pct < 0 || pct > 100 {
		return 0, errors.Errorf("draft: tax rate %v%% out of range", pct)
	}
	return pct / 100, nil
}

// TaxRatePercent renders a stored fraction back as the percentage the user
// typed, so "19" round-trips through 0.19 and back to "19".
func TaxRatePercent(rate float64) string {
	pct := math.Round(rate*100*1e6) / 1e6
	return strconv.FormatFloat(pct, 'f', -1, 64)
}
