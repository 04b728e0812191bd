package api

import (
	"github.com/absmach/fedledger/pkg/api"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit == 0 || e.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}
