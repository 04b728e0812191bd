// Package gateway is an HTTP client for a checkpoint ledger gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	minSuccessStatus = 200
	maxSuccessStatus = 210
)

type Config struct {
	URL           string        `env:"URL"            envDefault:"http://localhost:9020"`
	ChannelName   string        `env:"CHANNEL"        envDefault:"fedlearn"`
	ChaincodeName string        `env:"CHAINCODE"      envDefault:"checkpoints"`
	ContractName  string        `env:"CONTRACT"       envDefault:"GlobalLearningContract"`
	ClientID      string        `env:"CLIENT_ID"      envDefault:"org1.example.com"`
	Retries       uint          `env:"RETRIES"        envDefault:"0"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"500ms"`
	Timeout       time.Duration `env:"TIMEOUT"        envDefault:"30s"`
}

type Client struct {
	cfg  Config
	http *http.Client
}

var (
	_ ledger.Ledger  = (*Client)(nil)
	_ ledger.Browser = (*Client)(nil)
)

func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) QueryLatest(ctx context.Context, owner string) (*ledger.Checkpoint, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, LatestPath, c.query(owner), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	latest := resp.Result[0]

	return &latest, nil
}

func (c *Client) Submit(ctx context.Context, cp ledger.Checkpoint) error {
	req := CreateRequest{
		ChannelName:    c.cfg.ChannelName,
		ChaincodeName:  c.cfg.ChaincodeName,
		ContractName:   c.cfg.ContractName,
		Client:         c.cfg.ClientID,
		CheckpointData: ToCheckpointData(cp),
	}

	var resp CreateResponse

	return c.do(ctx, http.MethodPost, CreatePath, nil, req, &resp)
}

func (c *Client) Get(ctx context.Context, id string) (ledger.Checkpoint, error) {
	var cp ledger.Checkpoint
	if err := c.do(ctx, http.MethodGet, ReadPath+url.PathEscape(id), c.query(c.cfg.ClientID), nil, &cp); err != nil {
		return ledger.Checkpoint{}, err
	}

	return cp, nil
}

func (c *Client) List(ctx context.Context, owner string) ([]ledger.Checkpoint, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, OwnerPath, c.query(owner), nil, &resp); err != nil {
		return nil, err
	}

	return resp.Result, nil
}

func (c *Client) query(clientID string) url.Values {
	q := url.Values{}
	q.Set(ParamChannel, c.cfg.ChannelName)
	q.Set(ParamChaincode, c.cfg.ChaincodeName)
	q.Set(ParamContract, c.cfg.ContractName)
	q.Set(ParamClient, clientID)

	return q
}

// do runs one request with the configured retry budget. Rejections and
// missing records are returned immediately.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := func() (struct{}, error) {
		err := c.once(ctx, method, path, query, body, out)
		if errors.Is(err, ledger.ErrRejected) || errors.Is(err, ledger.ErrNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInterval > 0 {
		b.InitialInterval = c.cfg.RetryInterval
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.Retries+1))

	return err
}

func (c *Client) once(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := strings.TrimSuffix(c.cfg.URL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransport, err)
	}

	if resp.StatusCode < minSuccessStatus || resp.StatusCode > maxSuccessStatus {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response: %w", ledger.ErrTransport, err)
	}

	return nil
}

func decodeError(status int, data []byte) error {
	var body ErrorResponse
	_ = json.Unmarshal(data, &body)

	for _, msg := range body.Messages() {
		for _, code := range []string{CodeBadCheckpoint, CodeCheckpointExist} {
			if i := strings.Index(msg, code); i >= 0 {
				return fmt.Errorf("%w: %s", ledger.ErrRejected, msg[i:])
			}
		}
	}

	if status == http.StatusNotFound {
		return ledger.ErrNotFound
	}

	reason := body.Reason
	if reason == "" {
		reason = body.Status.Message
	}

	return fmt.Errorf("%w: status %d: %s", ledger.ErrTransport, status, reason)
}
