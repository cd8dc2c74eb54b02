package models

import "time"

// Prediction is the model output for one symbol on one trading day.
type Prediction struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	ProbaUp     float64   `json:"proba_up"`
	Direction   string    `json:"direction"` // "up" or "down"
	Threshold   float64   `json:"threshold"`
	ModelID     string    `json:"model_id"`
	GeneratedAt time.Time `json:"generated_at"`
}
