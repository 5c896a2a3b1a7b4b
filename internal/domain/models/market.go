package models

// PricePoint is a single close-price observation for an asset.
// Immutable once ingested.
type PricePoint struct {
	Timestamp int64
	Asset     string
	Close     float64
}

// SignalPoint is a model's raw forecast or directional score at a point in time.
// Produced upstream; consumed read-only by the engine.
type SignalPoint struct {
	Timestamp int64
	Asset     string
	Model     string
	Value     float64
}

// Tick represents a live market data event from a stream provider.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}

// Series maps unix timestamps to values. The engine consumes prediction and
// price history in this shape, one map per asset.
type Series map[int64]float64

// AssetSeries maps asset id to its time series.
type AssetSeries map[string]Series
