package fl

import "errors"

var (
	ErrNotEnoughClients = errors.New("not enough available clients")
	ErrOverflow         = errors.New("sample count overflow during aggregation")
	ErrShapeMismatch    = errors.New("parameters shape mismatch")
)
