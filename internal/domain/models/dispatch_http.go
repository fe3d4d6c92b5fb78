package models

// OutcomesRequest filters the outcome log.
type OutcomesRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=accepted rejected failed"`
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,max=32"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}
