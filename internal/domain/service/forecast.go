package service

import (
	"context"

	"QuantBench/internal/domain/models"
)

// Forecaster produces a single model's next-step prediction from price
// history. Implementations wrap external model services or local estimators;
// the ensemble layer never depends on how the prediction was made.
type Forecaster interface {
	Name() string
	Predict(ctx context.Context, symbol string, history []float64) (models.ModelPrediction, error)
}

// RegimeClassifier reads the current market regime from recent prices and
// macro context.
type RegimeClassifier interface {
	Detect(prices []float64, macro models.MacroInputs) models.RegimeReading
}
