// Package quality scores how complete and relevant a waste report is.
//
// Score is a pure function of the report: no clock, no I/O. The award
// engine pays a quality bonus when the score reaches its threshold.
package quality

import (
	"strings"
	"unicode/utf8"

	"github.com/greencredits/greencredits/internal/domain"
)

// ─── Weights ────────────────────────────────────────────────────────────────

const (
	WeightPhoto       = 30
	WeightGPS         = 25
	WeightDescription = 20
	WeightAddress     = 15
	WeightKeywords    = 10

	// MinDescriptionLen and MinAddressLen are exclusive lower bounds.
	MinDescriptionLen = 10
	MinAddressLen     = 5

	MaxScore = WeightPhoto + WeightGPS + WeightDescription + WeightAddress + WeightKeywords
)

// Keywords are matched as case-insensitive substrings of the description.
var Keywords = []string{
	"waste",
	"garbage",
	"litter",
	"pollution",
	"dirty",
	"cleanup",
	"environment",
}

// Breakdown is the per-criterion contribution to a score.
type Breakdown struct {
	Photo       int `json:"photo"`
	GPS         int `json:"gps"`
	Description int `json:"description"`
	Address     int `json:"address"`
	Keywords    int `json:"keywords"`
}

// Total sums the contributions.
func (b Breakdown) Total() int {
	return b.Photo + b.GPS + b.Description + b.Address + b.Keywords
}

// Explain computes the breakdown for a report.
func Explain(r domain.Report) Breakdown {
	var b Breakdown
	if r.HasPhoto() {
		b.Photo = WeightPhoto
	}
	if r.HasGPS() {
		b.GPS = WeightGPS
	}
	if utf8.RuneCountInString(r.Description) > MinDescriptionLen {
		b.Description = WeightDescription
	}
	if utf8.RuneCountInString(r.Address) > MinAddressLen {
		b.Address = WeightAddress
	}
	if hasKeyword(r.Description) {
		b.Keywords = WeightKeywords
	}
	return b
}

// Score returns a value in [0, MaxScore].
func Score(r domain.Report) int {
	return Explain(r).Total()
}

func hasKeyword(description string) bool {
	if description == "" {
		return false
	}
	lower := strings.ToLower(description)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
