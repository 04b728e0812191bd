package sdk

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
)

func (sdk *fedSDK) LatestCheckpoint(owner string) (*ledger.Checkpoint, error) {
	u := withQuery(sdk.ledgerURL+gateway.LatestPath, sdk.ledgerQuery(owner, 0, 0))

	body, err := sdk.processRequest(http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res gateway.QueryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}
	if len(res.Result) == 0 {
		return nil, nil
	}

	return &res.Result[0], nil
}

func (sdk *fedSDK) ListCheckpoints(owner string, offset, limit uint64) ([]ledger.Checkpoint, error) {
	u := withQuery(sdk.ledgerURL+gateway.OwnerPath, sdk.ledgerQuery(owner, offset, limit))

	body, err := sdk.processRequest(http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res gateway.QueryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Result, nil
}

func (sdk *fedSDK) ViewCheckpoint(id string) (ledger.Checkpoint, error) {
	u := sdk.ledgerURL + gateway.ReadPath + url.PathEscape(id)

	body, err := sdk.processRequest(http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return ledger.Checkpoint{}, err
	}

	var cp ledger.Checkpoint
	if err := json.Unmarshal(body, &cp); err != nil {
		return ledger.Checkpoint{}, err
	}

	return cp, nil
}

func (sdk *fedSDK) ledgerQuery(owner string, offset, limit uint64) url.Values {
	q := pageQuery(offset, limit)
	q.Set(gateway.ParamContract, sdk.contract)
	q.Set(gateway.ParamClient, owner)

	return q
}
