package ledger_test

import (
	"strings"
	"testing"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/stretchr/testify/assert"
)

func TestComputeContentHash(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		payload  []byte
		expected string
	}{
		{
			name:     "empty payload",
			payload:  []byte{},
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "abc",
			payload:  []byte("abc"),
			expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ledger.ComputeContentHash(tc.payload))
			assert.Equal(t, ledger.ComputeContentHash(tc.payload), ledger.ComputeContentHash(append([]byte(nil), tc.payload...)))
		})
	}

	assert.NotEqual(t, ledger.ComputeContentHash([]byte("a")), ledger.ComputeContentHash([]byte("b")))
}

func TestNextSession(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, ledger.NextSession(nil))
	assert.Equal(t, 4, ledger.NextSession(&ledger.Checkpoint{FedSession: 3}))
}

func TestCheckpointID(t *testing.T) {
	t.Parallel()

	hash := strings.Repeat("ab", 32)
	assert.Equal(t, "gmodel_fs4_r2_"+hash, ledger.CheckpointID(4, 2, hash))
}

func TestLocalCheckpointID(t *testing.T) {
	t.Parallel()

	hash := strings.Repeat("cd", 32)
	cases := []struct {
		name     string
		session  int
		round    int
		clientID string
		expected string
	}{
		{name: "first round", session: 1, round: 1, clientID: "client-0", expected: "model_fs1_r1_cclient-0_" + hash},
		{name: "later session", session: 3, round: 7, clientID: "7", expected: "model_fs3_r7_c7_" + hash},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ledger.LocalCheckpointID(tc.session, tc.round, tc.clientID, hash))
		})
	}

	assert.NotEqual(t, ledger.CheckpointID(1, 1, hash), ledger.LocalCheckpointID(1, 1, "", hash))
}

func TestAccuracy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.9, ledger.Accuracy(map[string]float64{"accuracy": 0.9}))
	assert.Equal(t, 0.0, ledger.Accuracy(nil))
}
