package coordinator_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/contentstore"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/mqtt/mocks"
	"github.com/absmach/fedledger/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelID = "chan-1"

// responder answers requests for one client id the way an agent would.
func responder(t *testing.T, broker *mocks.Broker, clientID string, reply func(fl.Request) *fl.Response) *mocks.Conn {
	t.Helper()

	conn := broker.Connect(clientID, fmt.Sprintf(fl.OfflineTopicTemplate, channelID))
	topic := fmt.Sprintf(fl.RequestTopicTemplate, channelID, clientID)
	err := conn.Subscribe(context.Background(), topic, func(_ string, msg map[string]any) error {
		var req fl.Request
		if err := fl.DecodeMessage(msg, &req); err != nil {
			return err
		}
		go func() {
			resp := reply(req)
			if resp == nil {
				return
			}
			resp.RequestID = req.RequestID
			resp.ClientID = clientID
			resp.Method = req.Method
			out, err := fl.ToMessage(resp)
			if err != nil {
				return
			}
			_ = conn.Publish(context.Background(), fmt.Sprintf(fl.ResultsTopicTemplate, channelID), out)
		}()

		return nil
	})
	require.NoError(t, err)

	return conn
}

func announce(t *testing.T, conn *mocks.Conn, clientID string) {
	t.Helper()

	msg, err := fl.ToMessage(fl.Announcement{ClientID: clientID, Properties: map[string]string{registry.PropertyClientID: clientID}})
	require.NoError(t, err)
	require.NoError(t, conn.Publish(context.Background(), fmt.Sprintf(fl.AnnounceTopicTemplate, channelID), msg))
}

func newTransport(t *testing.T) (*mocks.Broker, *registry.Registry) {
	t.Helper()

	broker := mocks.NewBroker()
	reg := registry.New()
	tr := coordinator.NewTransport(broker.Connect("coordinator", ""), channelID, reg, logger)
	require.NoError(t, tr.Subscribe(context.Background()))

	return broker, reg
}

func TestTransportRoundTrip(t *testing.T) {
	broker, reg := newTransport(t)

	conn := responder(t, broker, "c1", func(req fl.Request) *fl.Response {
		switch req.Method {
		case fl.MethodFit:
			params, err := fl.DecodeParameters(req.Parameters)
			if err != nil {
				return &fl.Response{Error: err.Error()}
			}
			params.Tensors[0][0]++
			data, _ := fl.EncodeParameters(params)

			return &fl.Response{Parameters: data, NumSamples: 12, Metrics: fl.Metrics{"accuracy": 0.5}}
		case fl.MethodEvaluate:
			return &fl.Response{Loss: 0.25, NumSamples: 12}
		case fl.MethodGetParameters:
			data, _ := fl.EncodeParameters(fl.Parameters{Tensors: [][]float64{{9}}})

			return &fl.Response{Parameters: data}
		default:
			return &fl.Response{Properties: map[string]string{"round": fmt.Sprint(req.Config.Int(fl.ConfigRound))}}
		}
	})
	announce(t, conn, "c1")

	h, err := reg.GetByIdentity(context.Background(), "c1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, h.Client)
	assert.Equal(t, "c1", h.Properties[registry.PropertyClientID])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := h.Client.Fit(ctx, fl.FitIns{
		Parameters: fl.Parameters{Tensors: [][]float64{{1, 2}}},
		Config:     fl.Config{fl.ConfigRound: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 2}}, res.Parameters.Tensors)
	assert.Equal(t, 12, res.NumSamples)
	assert.InDelta(t, 0.5, res.Metrics["accuracy"], 1e-9)

	eval, err := h.Client.Evaluate(ctx, fl.EvaluateIns{Parameters: res.Parameters})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, eval.Loss, 1e-9)

	params, err := h.Client.GetParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{9}}, params.Tensors)

	props, err := h.Client.GetProperties(ctx, fl.Config{fl.ConfigRound: 4})
	require.NoError(t, err)
	assert.Equal(t, "4", props["round"])
}

func TestTransportRemoteError(t *testing.T) {
	broker, reg := newTransport(t)
	conn := responder(t, broker, "c1", func(fl.Request) *fl.Response {
		return &fl.Response{Error: "out of memory"}
	})
	announce(t, conn, "c1")

	h, err := reg.GetByIdentity(context.Background(), "c1", time.Second)
	require.NoError(t, err)

	_, err = h.Client.Fit(context.Background(), fl.FitIns{Parameters: fl.Parameters{Tensors: [][]float64{{1}}}})
	assert.ErrorIs(t, err, coordinator.ErrRemoteCall)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestTransportTimeoutDiscardsLateReply(t *testing.T) {
	broker, reg := newTransport(t)
	release := make(chan struct{})
	conn := responder(t, broker, "c1", func(fl.Request) *fl.Response {
		<-release

		return &fl.Response{Loss: 1, NumSamples: 1}
	})
	announce(t, conn, "c1")

	h, err := reg.GetByIdentity(context.Background(), "c1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Client.Evaluate(ctx, fl.EvaluateIns{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestTransportLiveness(t *testing.T) {
	broker, reg := newTransport(t)
	conn := responder(t, broker, "c1", func(fl.Request) *fl.Response { return nil })
	announce(t, conn, "c1")
	assert.Equal(t, 1, reg.Len())

	conn.Drop()
	assert.Equal(t, 0, reg.Len())
	_, ok := reg.Lookup("c1")
	assert.False(t, ok)

	alive := broker.Connect("c1-again", "")
	msg, err := fl.ToMessage(fl.Announcement{ClientID: "c1"})
	require.NoError(t, err)
	require.NoError(t, alive.Publish(context.Background(), fmt.Sprintf(fl.AliveTopicTemplate, channelID), msg))
	assert.Equal(t, 1, reg.Len())

	msg, err = fl.ToMessage(fl.Announcement{ClientID: "c2"})
	require.NoError(t, err)
	require.NoError(t, alive.Publish(context.Background(), fmt.Sprintf(fl.AliveTopicTemplate, channelID), msg))
	assert.Equal(t, 2, reg.Len())
}

func TestTransportEndToEndRun(t *testing.T) {
	broker, reg := newTransport(t)
	samples := map[string]int{"c1": 10, "c2": 20, "c3": 30}
	losses := map[string]float64{"c1": 0.5, "c2": 0.3, "c3": 0.1}

	for id := range samples {
		conn := responder(t, broker, id, func(req fl.Request) *fl.Response {
			switch req.Method {
			case fl.MethodFit:
				return &fl.Response{Parameters: req.Parameters, NumSamples: samples[id]}
			case fl.MethodEvaluate:
				return &fl.Response{Loss: losses[id], NumSamples: samples[id]}
			default:
				return &fl.Response{}
			}
		})
		announce(t, conn, id)
	}

	l := &fakeLedger{}
	svc := newService(coordinator.Config{}, reg, l, contentstore.NewMemory(), fl.FedAvgConfig{MinAvailableClients: 3, InitialParameters: seed()})

	snap, err := svc.Run(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.Len(t, snap.LossesDistributed, 1)
	assert.InDelta(t, 0.23333333, snap.LossesDistributed[0].Loss, 1e-6)
	assert.Len(t, l.checkpoints(), 1)
}
