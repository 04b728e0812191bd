package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/absmach/fedledger/pkg/ledger"
)

const CTJSON string = "application/json"

var ErrUnexpectedStatus = errors.New("unexpected response code")

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// Status returns the coordinator's run state.
	//
	// example:
	//  status, _ := sdk.Status()
	//  fmt.Println(status.State, status.Round)
	Status() (Status, error)

	// History returns the loss and metric history of the current or last run.
	//
	// example:
	//  hist, _ := sdk.History()
	//  fmt.Println(hist.Summary)
	History() (History, error)

	// ListClients lists the clients registered with the coordinator.
	//
	// example:
	//  page, _ := sdk.ListClients(0, 10)
	//  fmt.Println(page.Total)
	ListClients(offset, limit uint64) (ClientPage, error)

	// RemoveClient evicts a client from the coordinator's registry.
	//
	// example:
	//  _ = sdk.RemoveClient("client-1")
	RemoveClient(id string) error

	// LatestCheckpoint returns the newest checkpoint recorded for owner, or
	// nil when the ledger holds none.
	//
	// example:
	//  cp, _ := sdk.LatestCheckpoint("org1")
	//  fmt.Println(cp.ID)
	LatestCheckpoint(owner string) (*ledger.Checkpoint, error)

	// ListCheckpoints lists checkpoints recorded for owner, newest first.
	//
	// example:
	//  cps, _ := sdk.ListCheckpoints("org1", 0, 10)
	ListCheckpoints(owner string, offset, limit uint64) ([]ledger.Checkpoint, error)

	// ViewCheckpoint reads a checkpoint by id.
	//
	// example:
	//  cp, _ := sdk.ViewCheckpoint("gmodel_fs1_r1_ab12...")
	ViewCheckpoint(id string) (ledger.Checkpoint, error)
}

type fedSDK struct {
	coordinatorURL string
	ledgerURL      string
	contract       string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	LedgerURL       string
	Contract        string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	contract := cfg.Contract
	if contract == "" {
		contract = ledger.ContractGlobal
	}

	return &fedSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		ledgerURL:      strings.TrimSuffix(cfg.LedgerURL, "/"),
		contract:       contract,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, errorMessage(body))
	}

	return body, nil
}

// errorMessage extracts a readable reason from either error body shape the
// services return.
func errorMessage(body []byte) string {
	var res struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return ""
	}
	if res.Error != "" {
		return res.Error
	}

	return res.Reason
}

func pageQuery(offset, limit uint64) url.Values {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.FormatUint(offset, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}

	return q
}

func withQuery(u string, q url.Values) string {
	if len(q) == 0 {
		return u
	}

	return u + "?" + q.Encode()
}
