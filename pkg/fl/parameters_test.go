package fl_test

import (
	"testing"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParametersDeterministic(t *testing.T) {
	t.Parallel()

	p := fl.Parameters{Tensors: [][]float64{{0.1, -2.5, 3}, {}, {1e-9}}}

	first, err := fl.EncodeParameters(p)
	require.NoError(t, err)
	second, err := fl.EncodeParameters(fl.Parameters{Tensors: [][]float64{{0.1, -2.5, 3}, {}, {1e-9}}})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := fl.DecodeParameters(first)
	require.NoError(t, err)
	require.Len(t, decoded.Tensors, 3)
	assert.Equal(t, p.Tensors[0], decoded.Tensors[0])
	assert.Empty(t, decoded.Tensors[1])
	assert.Equal(t, p.Tensors[2], decoded.Tensors[2])
}

func TestEncodeParametersDistinguishesPayloads(t *testing.T) {
	t.Parallel()

	a, err := fl.EncodeParameters(fl.Parameters{Tensors: [][]float64{{1, 2}}})
	require.NoError(t, err)
	b, err := fl.EncodeParameters(fl.Parameters{Tensors: [][]float64{{2, 1}}})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecodeParametersInvalid(t *testing.T) {
	t.Parallel()

	_, err := fl.DecodeParameters([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestConfigInt(t *testing.T) {
	t.Parallel()

	cfg := fl.Config{"a": 3, "b": float64(4), "c": int64(5), "d": "x"}
	assert.Equal(t, 3, cfg.Int("a"))
	assert.Equal(t, 4, cfg.Int("b"))
	assert.Equal(t, 5, cfg.Int("c"))
	assert.Equal(t, 0, cfg.Int("d"))
	assert.Equal(t, 0, cfg.Int("missing"))
}

func TestWireMessageRoundTrip(t *testing.T) {
	t.Parallel()

	req := fl.Request{RequestID: "r1", ClientID: "c1", Method: fl.MethodFit, Parameters: []byte{1, 2, 3}, Config: fl.Config{fl.ConfigRound: 2}}
	msg, err := fl.ToMessage(req)
	require.NoError(t, err)

	var got fl.Request
	require.NoError(t, fl.DecodeMessage(msg, &got))
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, req.Parameters, got.Parameters)
	assert.Equal(t, 2, got.Config.Int(fl.ConfigRound))
}
