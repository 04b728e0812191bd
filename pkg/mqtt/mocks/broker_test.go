package mocks_test

import (
	"context"
	"testing"

	"github.com/absmach/fedledger/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		filter string
		topic  string
		match  bool
	}{
		{"a/b/c", "a/b/c", true},
		{"a/+/c", "a/b/c", true},
		{"a/#", "a/b/c", true},
		{"a/b", "a/b/c", false},
		{"a/b/c/d", "a/b/c", false},
		{"a/+/d", "a/b/c", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.match, mocks.Match(tc.filter, tc.topic), tc.filter+" "+tc.topic)
	}
}

func TestBrokerDeliversAndFiresWill(t *testing.T) {
	b := mocks.NewBroker()
	sub := b.Connect("sub", "")
	pub := b.Connect("pub", "will/topic")

	var got []string
	require.NoError(t, sub.Subscribe(context.Background(), "data/#", func(topic string, msg map[string]any) error {
		got = append(got, topic+":"+msg["v"].(string))

		return nil
	}))
	require.NoError(t, sub.Subscribe(context.Background(), "will/topic", func(_ string, msg map[string]any) error {
		got = append(got, "will:"+msg["client_id"].(string))

		return nil
	}))

	require.NoError(t, pub.Publish(context.Background(), "data/x", map[string]string{"v": "1"}))
	require.NoError(t, pub.Publish(context.Background(), "other", map[string]string{"v": "2"}))
	pub.Drop()

	assert.Equal(t, []string{"data/x:1", "will:pub"}, got)
}
