package api

import (
	"errors"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	apiutil "github.com/absmach/supermq/api/http/util"
)

const maxQueryLimit = 1000

var errOwner = errors.New(gateway.CodeBadCheckpoint + ": missing client identity")

type createReq struct {
	gateway.CreateRequest
}

func (req *createReq) validate() error {
	if req.CheckpointData.ID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

func (req *createReq) checkpoint() ledger.Checkpoint {
	return req.CheckpointData.Checkpoint()
}

type queryReq struct {
	contract string
	owner    string
	offset   uint64
	limit    uint64
}

func (req *queryReq) validate() error {
	if req.owner == "" {
		return errOwner
	}
	if req.limit == 0 || req.limit > maxQueryLimit {
		return apiutil.ErrLimitSize
	}

	return nil
}

type readReq struct {
	id string
}

func (req *readReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
