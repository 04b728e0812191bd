package gateway

import (
	"encoding/json"
	"time"

	"github.com/absmach/fedledger/pkg/ledger"
)

// Sentinels embedded in error details by the gateway.
const (
	CodeBadCheckpoint   = "CP400"
	CodeNotFound        = "CP404"
	CodeCheckpointExist = "CP409"
)

// Endpoints exposed by a ledger gateway.
const (
	CreatePath = "/transactions/checkpoint/create"
	LatestPath = "/query/checkpoint/latest"
	OwnerPath  = "/query/checkpoint/owner"
	ReadPath   = "/transactions/checkpoint/query/"
)

// Query parameters selecting the ledger channel, chaincode, contract and client.
const (
	ParamChannel   = "chn"
	ParamChaincode = "ccn"
	ParamContract  = "ctn"
	ParamClient    = "clID"
)

type CheckpointData struct {
	ID         string             `json:"id"`
	Hash       string             `json:"hash"`
	URL        string             `json:"url"`
	Algorithm  string             `json:"algorithm"`
	Owner      string             `json:"owner"`
	CAccuracy  float64            `json:"cAccuracy"`
	Loss       float64            `json:"loss"`
	Round      int                `json:"round"`
	FedSession int                `json:"fedSession"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

type CreateRequest struct {
	ChannelName    string         `json:"channelName"`
	ChaincodeName  string         `json:"chaincodeName"`
	ContractName   string         `json:"contractName"`
	Client         string         `json:"client"`
	CheckpointData CheckpointData `json:"checkpointData"`
}

type CreateResponse struct {
	Status    string    `json:"status"`
	ModelID   string    `json:"modelID"`
	Timestamp time.Time `json:"timestamp"`
}

type QueryResponse struct {
	Result []ledger.Checkpoint `json:"result"`
}

type ErrorStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ErrorDetail struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status    ErrorStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Messages returns the detail messages whether the gateway sent a list of
// objects or a plain string.
func (e ErrorResponse) Messages() []string {
	if len(e.Details) == 0 {
		return nil
	}

	var details []ErrorDetail
	if err := json.Unmarshal(e.Details, &details); err == nil {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			msgs = append(msgs, d.Message)
		}

		return msgs
	}

	var msg string
	if err := json.Unmarshal(e.Details, &msg); err == nil {
		return []string{msg}
	}

	return nil
}

// ToCheckpointData converts a record to its create request form.
func ToCheckpointData(cp ledger.Checkpoint) CheckpointData {
	return CheckpointData{
		ID:         cp.ID,
		Hash:       cp.Hash,
		URL:        cp.URL,
		Algorithm:  cp.Algorithm,
		Owner:      cp.Owner,
		CAccuracy:  cp.CurAccuracy,
		Loss:       cp.Loss,
		Round:      cp.Round,
		FedSession: cp.FedSession,
		Metrics:    cp.Metrics,
	}
}

func (d CheckpointData) Checkpoint() ledger.Checkpoint {
	return ledger.Checkpoint{
		ID:          d.ID,
		Hash:        d.Hash,
		URL:         d.URL,
		Owner:       d.Owner,
		Algorithm:   d.Algorithm,
		CurAccuracy: d.CAccuracy,
		Loss:        d.Loss,
		Round:       d.Round,
		FedSession:  d.FedSession,
		Metrics:     d.Metrics,
	}
}
