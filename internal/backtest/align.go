package backtest

import (
	"sort"

	"QuantBench/internal/domain/models"
)

// Align restricts prediction and price series to the assets present in both
// inputs and to the timestamp intersection across all of those assets. The
// returned series is ordered by ascending timestamp. Assets with an empty
// price series are dropped and reported in the second return value; the
// caller decides whether to log them.
//
// An empty AlignedSeries (never an error) means "cannot backtest": no common
// assets, or an empty cross-asset timestamp intersection.
func Align(predictions, prices models.AssetSeries) (models.AlignedSeries, []string) {
	var dropped []string

	assets := make([]string, 0, len(predictions))
	for asset, pred := range predictions {
		price, ok := prices[asset]
		if !ok {
			continue
		}
		if len(price) == 0 || len(pred) == 0 {
			dropped = append(dropped, asset)
			continue
		}
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	sort.Strings(dropped)

	if len(assets) == 0 {
		return models.AlignedSeries{}, dropped
	}

	// Intersect timestamps: a timestamp survives only if every asset has both
	// a price and a prediction for it.
	common := make(map[int64]int)
	for ts := range prices[assets[0]] {
		if _, ok := predictions[assets[0]][ts]; ok {
			common[ts] = 1
		}
	}
	for _, asset := range assets[1:] {
		for ts, n := range common {
			if n == 0 {
				continue
			}
			if _, ok := prices[asset][ts]; !ok {
				common[ts] = 0
				continue
			}
			if _, ok := predictions[asset][ts]; !ok {
				common[ts] = 0
			}
		}
	}

	timestamps := make([]int64, 0, len(common))
	for ts, n := range common {
		if n > 0 {
			timestamps = append(timestamps, ts)
		}
	}
	if len(timestamps) == 0 {
		return models.AlignedSeries{}, dropped
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	out := models.AlignedSeries{
		Timestamps: timestamps,
		Assets:     assets,
		Prices:     make(map[string][]float64, len(assets)),
		Signals:    make(map[string][]float64, len(assets)),
	}
	for _, asset := range assets {
		ps := make([]float64, len(timestamps))
		ss := make([]float64, len(timestamps))
		for i, ts := range timestamps {
			ps[i] = prices[asset][ts]
			ss[i] = predictions[asset][ts]
		}
		out.Prices[asset] = ps
		out.Signals[asset] = ss
	}
	return out, dropped
}
