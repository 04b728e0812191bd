package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/fedledger/pkg/registry"
)

// Agent answers coordinator requests on behalf of a local client.
type Agent struct {
	id                 string
	channelID          string
	livelinessInterval time.Duration
	properties         map[string]string
	pubsub             mqtt.PubSub
	local              fl.Client
	checkpoints        *LocalCheckpoints
	logger             *slog.Logger
}

func NewAgent(cfg Config, pubsub mqtt.PubSub, local fl.Client, properties map[string]string, logger *slog.Logger) *Agent {
	props := map[string]string{registry.PropertyClientID: cfg.ID}
	for k, v := range properties {
		props[k] = v
	}

	return &Agent{
		id:                 cfg.ID,
		channelID:          cfg.ChannelID,
		livelinessInterval: cfg.LivelinessInterval,
		properties:         props,
		pubsub:             pubsub,
		local:              local,
		logger:             logger,
	}
}

// Run subscribes to the agent's request topic, announces the client and
// heartbeats until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	topic := fmt.Sprintf(fl.RequestTopicTemplate, a.channelID, a.id)
	if err := a.pubsub.Subscribe(ctx, topic, a.handleRequest(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to request topic: %w", err)
	}

	if err := a.publishAnnouncement(ctx, fl.AnnounceTopicTemplate); err != nil {
		return fmt.Errorf("failed to publish announcement: %w", err)
	}
	a.logger.Info("Client agent is running", slog.String("client_id", a.id))

	if a.livelinessInterval <= 0 {
		<-ctx.Done()

		return nil
	}

	ticker := time.NewTicker(a.livelinessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("stopping liveliness updates")

			return nil
		case <-ticker.C:
			if err := a.publishAnnouncement(ctx, fl.AliveTopicTemplate); err != nil {
				a.logger.Error("failed to publish liveliness message", slog.Any("error", err))

				continue
			}
			a.logger.Debug("Published liveliness message", slog.String("client_id", a.id))
		}
	}
}

func (a *Agent) publishAnnouncement(ctx context.Context, tmpl string) error {
	msg, err := fl.ToMessage(fl.Announcement{ClientID: a.id, Properties: a.properties})
	if err != nil {
		return err
	}

	return a.pubsub.Publish(ctx, fmt.Sprintf(tmpl, a.channelID), msg)
}

func (a *Agent) handleRequest(ctx context.Context) mqtt.Handler {
	return func(_ string, msg map[string]any) error {
		var req fl.Request
		if err := fl.DecodeMessage(msg, &req); err != nil {
			return err
		}
		if req.RequestID == "" {
			return ErrMissingRequestID
		}

		// Training can take long; the broker callback must not block.
		go a.serve(ctx, req)

		return nil
	}
}

func (a *Agent) serve(ctx context.Context, req fl.Request) {
	resp, err := a.dispatch(ctx, req)
	if err != nil {
		a.logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("request_id", req.RequestID),
			slog.Any("error", err),
		)
		resp = fl.Response{Error: err.Error()}
	}
	resp.RequestID = req.RequestID
	resp.ClientID = a.id
	resp.Method = req.Method

	out, err := fl.ToMessage(resp)
	if err != nil {
		a.logger.Error("failed to encode reply", slog.Any("error", err))

		return
	}
	if err := a.pubsub.Publish(ctx, fmt.Sprintf(fl.ResultsTopicTemplate, a.channelID), out); err != nil {
		a.logger.Error("failed to publish reply", slog.String("request_id", req.RequestID), slog.Any("error", err))
	}
}

func (a *Agent) dispatch(ctx context.Context, req fl.Request) (fl.Response, error) {
	switch req.Method {
	case fl.MethodGetProperties:
		props, err := a.local.GetProperties(ctx, req.Config)
		if err != nil {
			return fl.Response{}, err
		}
		merged := make(map[string]string, len(a.properties)+len(props))
		for k, v := range a.properties {
			merged[k] = v
		}
		for k, v := range props {
			merged[k] = v
		}

		return fl.Response{Properties: merged}, nil
	case fl.MethodGetParameters:
		params, err := a.local.GetParameters(ctx)
		if err != nil {
			return fl.Response{}, err
		}
		data, err := fl.EncodeParameters(params)
		if err != nil {
			return fl.Response{}, err
		}

		return fl.Response{Parameters: data}, nil
	case fl.MethodFit:
		params, err := fl.DecodeParameters(req.Parameters)
		if err != nil {
			return fl.Response{}, err
		}
		res, err := a.local.Fit(ctx, fl.FitIns{Parameters: params, Config: req.Config})
		if err != nil {
			return fl.Response{}, err
		}
		data, err := fl.EncodeParameters(res.Parameters)
		if err != nil {
			return fl.Response{}, err
		}
		a.recordLocal(ctx, req.Config, data, res.Metrics)

		return fl.Response{Parameters: data, NumSamples: res.NumSamples, Metrics: res.Metrics}, nil
	case fl.MethodEvaluate:
		params, err := fl.DecodeParameters(req.Parameters)
		if err != nil {
			return fl.Response{}, err
		}
		res, err := a.local.Evaluate(ctx, fl.EvaluateIns{Parameters: params, Config: req.Config})
		if err != nil {
			return fl.Response{}, err
		}

		return fl.Response{Loss: res.Loss, NumSamples: res.NumSamples, Metrics: res.Metrics}, nil
	default:
		return fl.Response{}, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
}
