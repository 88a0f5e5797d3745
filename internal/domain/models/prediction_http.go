package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type AllPredictionsRequest struct {
	Mode string `query:"mode" json:"mode" default:"strict" validate:"oneof=strict partial"`
}

type CurrencyRequest struct {
	Currency string `param:"currency" json:"currency" validate:"required"`
}

type SnapshotsRequest struct {
	Currency string `param:"currency" json:"currency" validate:"required"`
	Limit    int    `query:"limit" json:"limit" default:"30" validate:"gte=1,lte=500"`
}
