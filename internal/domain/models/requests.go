package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type PredictionRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type BuildDatasetRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Margin  float64  `json:"margin" validate:"gte=0,lte=0.2"`
}

type TrainRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Margin  float64  `json:"margin" validate:"gte=0,lte=0.2"`
}
