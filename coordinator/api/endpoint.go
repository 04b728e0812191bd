package api

import (
	"context"
	"errors"

	"github.com/absmach/fedledger/coordinator"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return statusResponse{}, err
		}

		return statusResponse{Status: status}, nil
	}
}

func historyEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		snap, err := svc.History(ctx)
		if err != nil {
			return historyResponse{}, err
		}

		return historyResponse{Snapshot: snap, Summary: snap.String()}, nil
	}
}

func listClientsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listClientsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listClientsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListClients(ctx, req.offset, req.limit)
		if err != nil {
			return listClientsResponse{}, err
		}

		return listClientsResponse{ClientPage: page}, nil
	}
}

func removeClientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return removeClientResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return removeClientResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.RemoveClient(ctx, req.id); err != nil {
			return removeClientResponse{}, err
		}

		return removeClientResponse{}, nil
	}
}
