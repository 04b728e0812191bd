package api

import (
	"context"
	"errors"

	"github.com/absmach/fedledger/checkpoints"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

const statusAccepted = "ACCEPTED"

func createEndpoint(svc checkpoints.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(createReq)
		if !ok {
			return createResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return createResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		cp, err := svc.Create(ctx, req.ContractName, req.checkpoint())
		if err != nil {
			return createResponse{}, err
		}

		return createResponse{
			CreateResponse: gateway.CreateResponse{
				Status:    statusAccepted,
				ModelID:   cp.ID,
				Timestamp: cp.CreatedAt,
			},
		}, nil
	}
}

func latestEndpoint(svc checkpoints.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(queryReq)
		if !ok {
			return queryResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return queryResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		cp, err := svc.Latest(ctx, req.contract, req.owner)
		if err != nil {
			return queryResponse{}, err
		}

		res := queryResponse{QueryResponse: gateway.QueryResponse{Result: []ledger.Checkpoint{}}}
		if cp != nil {
			res.Result = append(res.Result, *cp)
		}

		return res, nil
	}
}

func ownerEndpoint(svc checkpoints.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(queryReq)
		if !ok {
			return queryResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return queryResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.List(ctx, req.contract, req.owner, req.offset, req.limit)
		if err != nil {
			return queryResponse{}, err
		}

		return queryResponse{QueryResponse: gateway.QueryResponse{Result: page.Checkpoints}}, nil
	}
}

func readEndpoint(svc checkpoints.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(readReq)
		if !ok {
			return readResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return readResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		cp, err := svc.Get(ctx, req.id)
		if err != nil {
			return readResponse{}, err
		}

		return readResponse{Checkpoint: cp}, nil
	}
}
