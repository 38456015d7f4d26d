package models

// Requests for the prediction HTTP endpoints. Defined in domain for
// consistency and reuse.

type PredictRequest struct {
	Symbol   string             `json:"symbol" default:"NIFTY" validate:"required,uppercase,min=2,max=20"`
	Features map[string]float64 `json:"features,omitempty"`
}

type RecentRequest struct {
	N int `query:"n" json:"n" default:"10" validate:"gte=1,lte=1000"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=10000"`
	From   string `query:"from" json:"from,omitempty"`
	To     string `query:"to" json:"to,omitempty"`
}
