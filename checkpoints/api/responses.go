package api

import (
	"net/http"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*createResponse)(nil)
	_ supermq.Response = (*queryResponse)(nil)
	_ supermq.Response = (*readResponse)(nil)
)

type createResponse struct {
	gateway.CreateResponse
}

func (c createResponse) Code() int {
	return http.StatusAccepted
}

func (c createResponse) Headers() map[string]string {
	return map[string]string{}
}

func (c createResponse) Empty() bool {
	return false
}

type queryResponse struct {
	gateway.QueryResponse
}

func (q queryResponse) Code() int {
	return http.StatusOK
}

func (q queryResponse) Headers() map[string]string {
	return map[string]string{}
}

func (q queryResponse) Empty() bool {
	return false
}

type readResponse struct {
	ledger.Checkpoint
}

func (r readResponse) Code() int {
	return http.StatusOK
}

func (r readResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r readResponse) Empty() bool {
	return false
}
