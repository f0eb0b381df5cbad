package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"cms-tags/models"
)

const (
	DefaultBands    = 6
	DefaultBiggest  = 1.0
	DefaultSmallest = 0.4
)

// Weighting selects how a tag cloud turns use counts into visual weight.
type Weighting string

const (
	WeightByBand Weighting = "band"
	WeightBySize Weighting = "size"
)

func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(strings.ToLower(strings.TrimSpace(s))); w {
	case WeightByBand, WeightBySize:
		return w, nil
	case "":
		return WeightBySize, nil
	default:
		return "", fmt.Errorf("unknown cloud weighting %q", s)
	}
}

// CloudOptions configures tag cloud weighting.
type CloudOptions struct {
	Weighting Weighting
	Bands     int
	Threshold int
	Biggest   float64
	Smallest  float64
}

func DefaultCloudOptions() CloudOptions {
	return CloudOptions{
		Weighting: WeightBySize,
		Bands:     DefaultBands,
		Biggest:   DefaultBiggest,
		Smallest:  DefaultSmallest,
	}
}

// Apply weights tags according to the configured mode.
func (o CloudOptions) Apply(tags []models.Tag) []models.Tag {
	if o.Weighting == WeightByBand {
		return Band(tags, o.Bands)
	}
	return Size(tags, o.Threshold, o.Biggest, o.Smallest)
}

// Band assigns each tag a CloudBand in [0, bands-1] by linear bucketing of
// its use count between the smallest and largest count present.
// Tags are modified in place and the same slice is returned.
func Band(tags []models.Tag, bands int) []models.Tag {
	if len(tags) == 0 {
		return tags
	}
	if bands < 1 {
		bands = DefaultBands
	}

	lo, hi := countRange(tags)
	divisor := (hi-lo)/bands + 1
	for i := range tags {
		band := (tags[i].UseCount - lo) / divisor
		tags[i].CloudBand = &band
	}
	return tags
}

// Size assigns each tag a CloudSize between smallest and biggest on a
// logarithmic scale of its use count, formatted with two decimals.
//
// Tags used fewer than threshold times are left out of the result; with a
// threshold of zero or less the input slice is weighted in place and returned.
// When every count is equal all tags get smallest.
func Size(tags []models.Tag, threshold int, biggest, smallest float64) []models.Tag {
	if threshold > 0 {
		kept := make([]models.Tag, 0, len(tags))
		for _, t := range tags {
			if t.UseCount >= threshold {
				kept = append(kept, t)
			}
		}
		tags = kept
	}
	if len(tags) == 0 {
		return tags
	}

	lo, hi := countRange(tags)
	if hi == lo || biggest == smallest {
		size := formatSize(smallest)
		for i := range tags {
			tags[i].CloudSize = size
		}
		return tags
	}

	// counts are shifted so the least used tag sits at ln(1) = 0
	steepness := math.Log(float64(hi-(lo-1))) / (biggest - smallest)
	for i := range tags {
		offset := math.Log(float64(tags[i].UseCount-(lo-1))) / steepness
		tags[i].CloudSize = formatSize(smallest + offset)
	}
	return tags
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func countRange(tags []models.Tag) (lo, hi int) {
	lo, hi = tags[0].UseCount, tags[0].UseCount
	for _, t := range tags[1:] {
		if t.UseCount < lo {
			lo = t.UseCount
		}
		if t.UseCount > hi {
			hi = t.UseCount
		}
	}
	return lo, hi
}
