package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/fedledger/pkg/registry"
	"github.com/google/uuid"
)

var (
	ErrRemoteCall   = errors.New("client returned an error")
	ErrInvalidReply = errors.New("invalid client reply")
)

// Transport reaches remote clients over MQTT. It keeps the registry in sync
// with client announcements and correlates replies by request id.
type Transport struct {
	pubsub    mqtt.PubSub
	channelID string
	registry  *registry.Registry
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]chan fl.Response
}

func NewTransport(pubsub mqtt.PubSub, channelID string, reg *registry.Registry, logger *slog.Logger) *Transport {
	return &Transport{
		pubsub:    pubsub,
		channelID: channelID,
		registry:  reg,
		logger:    logger,
		pending:   make(map[string]chan fl.Response),
	}
}

func (t *Transport) Subscribe(ctx context.Context) error {
	handlers := map[string]mqtt.Handler{
		fl.AnnounceTopicTemplate: t.handleAnnounce,
		fl.AliveTopicTemplate:    t.handleAlive,
		fl.OfflineTopicTemplate:  t.handleOffline,
		fl.ResultsTopicTemplate:  t.handleResult,
	}
	for tmpl, h := range handlers {
		if err := t.pubsub.Subscribe(ctx, fmt.Sprintf(tmpl, t.channelID), h); err != nil {
			return err
		}
	}

	return nil
}

// Client returns a proxy for the remote client with the given id.
func (t *Transport) Client(id string) fl.Client {
	return &remoteClient{transport: t, id: id}
}

// MonitorLiveness marks clients unreachable once they stop heartbeating for
// longer than ttl. It returns when ctx is done.
func (t *Transport) MonitorLiveness(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range t.registry.MarkStale(now.Add(-ttl)) {
				t.logger.Warn("client missed heartbeats", slog.String("client_id", id))
			}
		}
	}
}

func (t *Transport) call(ctx context.Context, req fl.Request) (fl.Response, error) {
	req.RequestID = uuid.NewString()
	ch := make(chan fl.Response, 1)

	t.mu.Lock()
	t.pending[req.RequestID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.RequestID)
		t.mu.Unlock()
	}()

	msg, err := fl.ToMessage(req)
	if err != nil {
		return fl.Response{}, err
	}
	topic := fmt.Sprintf(fl.RequestTopicTemplate, t.channelID, req.ClientID)
	if err := t.pubsub.Publish(ctx, topic, msg); err != nil {
		return fl.Response{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, fmt.Errorf("%w: %s", ErrRemoteCall, resp.Error)
		}
		if resp.Method != req.Method {
			return resp, fmt.Errorf("%w: expected %s, got %s", ErrInvalidReply, req.Method, resp.Method)
		}

		return resp, nil
	case <-ctx.Done():
		return fl.Response{}, ctx.Err()
	}
}

func (t *Transport) handleAnnounce(_ string, msg map[string]any) error {
	var a fl.Announcement
	if err := fl.DecodeMessage(msg, &a); err != nil {
		return err
	}
	if a.ClientID == "" {
		return errors.New("client id is empty")
	}
	t.registry.Register(a.ClientID, a.Properties, t.Client(a.ClientID))
	t.logger.Info("client joined", slog.String("client_id", a.ClientID))

	return nil
}

func (t *Transport) handleAlive(_ string, msg map[string]any) error {
	var a fl.Announcement
	if err := fl.DecodeMessage(msg, &a); err != nil {
		return err
	}
	if a.ClientID == "" {
		return errors.New("client id is empty")
	}
	if !t.registry.Touch(a.ClientID) {
		t.registry.Register(a.ClientID, a.Properties, t.Client(a.ClientID))
	}

	return nil
}

func (t *Transport) handleOffline(_ string, msg map[string]any) error {
	id, _ := msg["client_id"].(string)
	if id == "" {
		return errors.New("client id is empty")
	}
	t.registry.MarkUnreachable(id)
	t.logger.Warn("client went offline", slog.String("client_id", id))

	return nil
}

func (t *Transport) handleResult(_ string, msg map[string]any) error {
	var resp fl.Response
	if err := fl.DecodeMessage(msg, &resp); err != nil {
		return err
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.RequestID]
	t.mu.Unlock()
	if !ok {
		t.logger.Debug("discarding late reply",
			slog.String("request_id", resp.RequestID),
			slog.String("client_id", resp.ClientID),
		)

		return nil
	}

	select {
	case ch <- resp:
	default:
	}

	return nil
}

type remoteClient struct {
	transport *Transport
	id        string
}

var _ fl.Client = (*remoteClient)(nil)

func (c *remoteClient) GetProperties(ctx context.Context, cfg fl.Config) (map[string]string, error) {
	resp, err := c.transport.call(ctx, fl.Request{ClientID: c.id, Method: fl.MethodGetProperties, Config: cfg})
	if err != nil {
		return nil, err
	}

	return resp.Properties, nil
}

func (c *remoteClient) GetParameters(ctx context.Context) (fl.Parameters, error) {
	resp, err := c.transport.call(ctx, fl.Request{ClientID: c.id, Method: fl.MethodGetParameters})
	if err != nil {
		return fl.Parameters{}, err
	}

	return fl.DecodeParameters(resp.Parameters)
}

func (c *remoteClient) Fit(ctx context.Context, ins fl.FitIns) (fl.FitRes, error) {
	data, err := fl.EncodeParameters(ins.Parameters)
	if err != nil {
		return fl.FitRes{}, err
	}
	resp, err := c.transport.call(ctx, fl.Request{ClientID: c.id, Method: fl.MethodFit, Parameters: data, Config: ins.Config})
	if err != nil {
		return fl.FitRes{}, err
	}
	params, err := fl.DecodeParameters(resp.Parameters)
	if err != nil {
		return fl.FitRes{}, errors.Join(ErrInvalidReply, err)
	}

	return fl.FitRes{Parameters: params, NumSamples: resp.NumSamples, Metrics: resp.Metrics}, nil
}

func (c *remoteClient) Evaluate(ctx context.Context, ins fl.EvaluateIns) (fl.EvaluateRes, error) {
	data, err := fl.EncodeParameters(ins.Parameters)
	if err != nil {
		return fl.EvaluateRes{}, err
	}
	resp, err := c.transport.call(ctx, fl.Request{ClientID: c.id, Method: fl.MethodEvaluate, Parameters: data, Config: ins.Config})
	if err != nil {
		return fl.EvaluateRes{}, err
	}

	return fl.EvaluateRes{Loss: resp.Loss, NumSamples: resp.NumSamples, Metrics: resp.Metrics}, nil
}
