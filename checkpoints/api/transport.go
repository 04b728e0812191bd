package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/pkg/api"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const idKey = "id"

func MakeHandler(svc checkpoints.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, encodeError)),
	}

	mux.Post(gateway.CreatePath, otelhttp.NewHandler(kithttp.NewServer(
		createEndpoint(svc),
		decodeCreateReq,
		api.EncodeResponse,
		opts...,
	), "create-checkpoint").ServeHTTP)

	mux.Get(gateway.LatestPath, otelhttp.NewHandler(kithttp.NewServer(
		latestEndpoint(svc),
		decodeQueryReq,
		api.EncodeResponse,
		opts...,
	), "query-latest-checkpoint").ServeHTTP)

	mux.Get(gateway.OwnerPath, otelhttp.NewHandler(kithttp.NewServer(
		ownerEndpoint(svc),
		decodeQueryReq,
		api.EncodeResponse,
		opts...,
	), "query-owner-checkpoints").ServeHTTP)

	mux.Get(gateway.ReadPath+"{"+idKey+"}", otelhttp.NewHandler(kithttp.NewServer(
		readEndpoint(svc),
		decodeReadReq,
		api.EncodeResponse,
		opts...,
	), "read-checkpoint").ServeHTTP)

	mux.Get("/health", supermq.Health("ledgerd", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeCreateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req.CreateRequest); err != nil {
		return nil, errors.Join(pkgerrors.ErrMalformed, err)
	}

	return req, nil
}

func decodeQueryReq(_ context.Context, r *http.Request) (any, error) {
	contract, err := apiutil.ReadStringQuery(r, gateway.ParamContract, "")
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	owner, err := apiutil.ReadStringQuery(r, gateway.ParamClient, "")
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	offset, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	limit, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, maxQueryLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return queryReq{
		contract: contract,
		owner:    owner,
		offset:   offset,
		limit:    limit,
	}, nil
}

func decodeReadReq(_ context.Context, r *http.Request) (any, error) {
	return readReq{id: chi.URLParam(r, idKey)}, nil
}

// encodeError writes the gateway error body. Validation failures carry the
// CP400 code in their detail message so clients never retry them.
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, checkpoints.ErrCheckpointExists):
		status = http.StatusConflict
	case errors.Is(err, checkpoints.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, checkpoints.ErrBadCheckpoint),
		errors.Is(err, checkpoints.ErrUnknownContract):
		status = http.StatusBadRequest
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, pkgerrors.ErrMalformed):
		status = http.StatusBadRequest
		if !strings.Contains(msg, gateway.CodeBadCheckpoint) {
			msg = gateway.CodeBadCheckpoint + ": " + msg
		}
	}

	details, _ := json.Marshal([]gateway.ErrorDetail{{Message: msg}})
	body := gateway.ErrorResponse{
		Status: gateway.ErrorStatus{
			Code:    status,
			Message: http.StatusText(status),
		},
		Reason:    err.Error(),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", api.ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
