package sdk

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

const (
	statusEndpoint  = "/status"
	historyEndpoint = "/history"
	clientsEndpoint = "/clients"
)

type Status struct {
	State      string    `json:"state"`
	Session    int       `json:"session"`
	Round      int       `json:"round"`
	NumRounds  int       `json:"num_rounds"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RoundLoss struct {
	Round int     `json:"round"`
	Loss  float64 `json:"loss"`
}

type RoundValue struct {
	Round int     `json:"round"`
	Value float64 `json:"value"`
}

type Series struct {
	Names  []string                `json:"names"`
	Values map[string][]RoundValue `json:"values"`
}

type History struct {
	Session               int           `json:"session"`
	LossesDistributed     []RoundLoss   `json:"losses_distributed"`
	MetricsDistributed    Series        `json:"metrics_distributed"`
	MetricsDistributedFit Series        `json:"metrics_distributed_fit"`
	Elapsed               time.Duration `json:"elapsed"`
	Finalized             bool          `json:"finalized"`
	Summary               string        `json:"summary"`
}

type Client struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties,omitempty"`
	Reachable  bool              `json:"reachable"`
	JoinedAt   time.Time         `json:"joined_at"`
	LastSeen   time.Time         `json:"last_seen"`
}

type ClientPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Clients []Client `json:"clients"`
}

func (sdk *fedSDK) Status() (Status, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+statusEndpoint, nil, http.StatusOK)
	if err != nil {
		return Status{}, err
	}

	var s Status
	if err := json.Unmarshal(body, &s); err != nil {
		return Status{}, err
	}

	return s, nil
}

func (sdk *fedSDK) History() (History, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+historyEndpoint, nil, http.StatusOK)
	if err != nil {
		return History{}, err
	}

	var h History
	if err := json.Unmarshal(body, &h); err != nil {
		return History{}, err
	}

	return h, nil
}

func (sdk *fedSDK) ListClients(offset, limit uint64) (ClientPage, error) {
	u := withQuery(sdk.coordinatorURL+clientsEndpoint+"/", pageQuery(offset, limit))

	body, err := sdk.processRequest(http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return ClientPage{}, err
	}

	var cp ClientPage
	if err := json.Unmarshal(body, &cp); err != nil {
		return ClientPage{}, err
	}

	return cp, nil
}

func (sdk *fedSDK) RemoveClient(id string) error {
	u := sdk.coordinatorURL + clientsEndpoint + "/" + url.PathEscape(id)

	if _, err := sdk.processRequest(http.MethodDelete, u, nil, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}
