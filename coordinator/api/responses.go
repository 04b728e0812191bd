package api

import (
	"net/http"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/history"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*statusResponse)(nil)
	_ supermq.Response = (*historyResponse)(nil)
	_ supermq.Response = (*listClientsResponse)(nil)
	_ supermq.Response = (*removeClientResponse)(nil)
)

type statusResponse struct {
	coordinator.Status
}

func (s statusResponse) Code() int {
	return http.StatusOK
}

func (s statusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statusResponse) Empty() bool {
	return false
}

type historyResponse struct {
	history.Snapshot
	Summary string `json:"summary"`
}

func (h historyResponse) Code() int {
	return http.StatusOK
}

func (h historyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (h historyResponse) Empty() bool {
	return false
}

type listClientsResponse struct {
	coordinator.ClientPage
}

func (l listClientsResponse) Code() int {
	return http.StatusOK
}

func (l listClientsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listClientsResponse) Empty() bool {
	return false
}

type removeClientResponse struct{}

func (r removeClientResponse) Code() int {
	return http.StatusNoContent
}

func (r removeClientResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r removeClientResponse) Empty() bool {
	return true
}
