package backtest

import (
	"testing"

	"QuantBench/internal/domain/models"
)

func TestAlignIntersection(t *testing.T) {
	preds := models.AssetSeries{
		"AAA": {1: 0.5, 2: 0.6, 3: 0.7},
		"BBB": {2: -0.2, 3: -0.3, 4: -0.4},
	}
	prices := models.AssetSeries{
		"AAA": {1: 100, 2: 101, 3: 102},
		"BBB": {2: 50, 3: 51, 4: 52},
	}

	series, dropped := Align(preds, prices)
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped assets: %v", dropped)
	}
	if got := series.Timestamps; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected timestamps %v", got)
	}
	if len(series.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %v", series.Assets)
	}
	// every aligned timestamp must have a valid price and signal per asset
	for _, asset := range series.Assets {
		if len(series.Prices[asset]) != 2 || len(series.Signals[asset]) != 2 {
			t.Fatalf("ragged series for %s", asset)
		}
	}
	if series.Prices["AAA"][0] != 101 || series.Signals["BBB"][1] != -0.3 {
		t.Fatalf("values misplaced: %v %v", series.Prices, series.Signals)
	}
}

func TestAlignNoCommonAssets(t *testing.T) {
	preds := models.AssetSeries{"AAA": {1: 0.5}}
	prices := models.AssetSeries{"BBB": {1: 100}}
	series, _ := Align(preds, prices)
	if !series.Empty() {
		t.Fatalf("expected empty series")
	}
}

func TestAlignEmptyTimestampIntersection(t *testing.T) {
	preds := models.AssetSeries{
		"AAA": {1: 0.5, 2: 0.5},
		"BBB": {3: 0.5, 4: 0.5},
	}
	prices := models.AssetSeries{
		"AAA": {1: 100, 2: 100},
		"BBB": {3: 50, 4: 50},
	}
	series, _ := Align(preds, prices)
	if !series.Empty() {
		t.Fatalf("expected empty series, got %d timestamps", series.Len())
	}
}

func TestAlignDropsAssetWithoutPrices(t *testing.T) {
	preds := models.AssetSeries{
		"AAA": {1: 0.5},
		"BBB": {1: 0.5},
	}
	prices := models.AssetSeries{
		"AAA": {1: 100},
		"BBB": {},
	}
	series, dropped := Align(preds, prices)
	if len(dropped) != 1 || dropped[0] != "BBB" {
		t.Fatalf("expected BBB dropped, got %v", dropped)
	}
	if series.Empty() || len(series.Assets) != 1 || series.Assets[0] != "AAA" {
		t.Fatalf("expected AAA to survive, got %v", series.Assets)
	}
}

func TestAlignDeterministicOrder(t *testing.T) {
	preds := models.AssetSeries{"AAA": {5: 1, 1: 1, 3: 1}}
	prices := models.AssetSeries{"AAA": {5: 100, 1: 100, 3: 100}}
	for i := 0; i < 10; i++ {
		series, _ := Align(preds, prices)
		if series.Timestamps[0] != 1 || series.Timestamps[1] != 3 || series.Timestamps[2] != 5 {
			t.Fatalf("timestamps not ascending: %v", series.Timestamps)
		}
	}
}
