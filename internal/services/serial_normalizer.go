package services

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/codyseavey/card-valuer/internal/models"
)

// defaultSerialValues maps print-run size to relative value. Lower runs are
// scarcer, so values never increase as the run grows.
var defaultSerialValues = map[int]float64{
	1:   20.0,
	5:   8.0,
	10:  5.0,
	25:  3.0,
	49:  2.2,
	50:  2.2,
	75:  1.8,
	99:  1.5,
	149: 1.3,
	199: 1.2,
	249: 1.1,
	299: 1.0,
	399: 0.9,
	499: 0.8,
}

// titleSerialRe finds "/99" or "12/99" style print runs in a listing title,
// skipping "2023/24" style seasons by capping the numerator at 3 digits
var titleSerialRe = regexp.MustCompile(`(?:^|[^\d/])(?:\d{1,3})?\s*/\s*(\d{1,4})\b`)

// SerialPriceNormalizer rescales prices between serial print runs using a
// sparse value table with linear interpolation
type SerialPriceNormalizer struct {
	runs   []int
	values map[int]float64
}

// NewSerialPriceNormalizer builds a normalizer over table (nil means the defaults)
func NewSerialPriceNormalizer(table map[int]float64) *SerialPriceNormalizer {
	if len(table) == 0 {
		table = defaultSerialValues
	}

	n := &SerialPriceNormalizer{values: make(map[int]float64, len(table))}
	for run, v := range table {
		if run <= 0 || v <= 0 {
			continue
		}
		n.values[run] = v
		n.runs = append(n.runs, run)
	}
	sort.Ints(n.runs)
	return n
}

// value returns the relative value of a print run. Between known keys the
// value is interpolated; below the smallest key it clamps; above the largest
// it scales inversely with run size.
func (n *SerialPriceNormalizer) value(run int) float64 {
	if v, ok := n.values[run]; ok {
		return v
	}
	if len(n.runs) == 0 {
		return 1
	}

	first, last := n.runs[0], n.runs[len(n.runs)-1]
	if run < first {
		return n.values[first]
	}
	if run > last {
		return n.values[last] * float64(last) / float64(run)
	}

	i := sort.SearchInts(n.runs, run)
	lo, hi := n.runs[i-1], n.runs[i]
	frac := float64(run-lo) / float64(hi-lo)
	return n.values[lo] + frac*(n.values[hi]-n.values[lo])
}

// Multiplier converts a price observed for fromRun into one for toRun
func (n *SerialPriceNormalizer) Multiplier(fromRun, toRun int) float64 {
	if fromRun == toRun {
		return 1.0
	}
	from := n.value(fromRun)
	if from == 0 {
		return 1.0
	}
	return n.value(toRun) / from
}

// Normalize adjusts sales to targetRun. When any sale is for exactly the
// target run, only those sales are returned, unchanged. Otherwise each sale
// with a detectable run is rescaled and sales without one pass through.
func (n *SerialPriceNormalizer) Normalize(sales []models.Sale, targetRun int) []models.Sale {
	if len(sales) == 0 {
		return nil
	}

	runs := make([]int, len(sales))
	var exact []models.Sale
	for i, s := range sales {
		runs[i] = ExtractSerialRun(s.Title)
		if runs[i] == targetRun {
			exact = append(exact, s)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	out := make([]models.Sale, len(sales))
	for i, s := range sales {
		if runs[i] > 0 {
			s.OriginalPrice = s.Price
			s.SerialRun = runs[i]
			s.Price = roundCents(s.Price * n.Multiplier(runs[i], targetRun))
		}
		out[i] = s
	}
	return out
}

// ExtractSerialRun returns the print-run denominator in a title, or 0
func ExtractSerialRun(title string) int {
	m := titleSerialRe.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	run, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return run
}
