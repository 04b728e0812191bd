package cli_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedledger/checkpoints"
	checkpointsapi "github.com/absmach/fedledger/checkpoints/api"
	"github.com/absmach/fedledger/cli"
	"github.com/absmach/fedledger/coordinator"
	coordinatorapi "github.com/absmach/fedledger/coordinator/api"
	"github.com/absmach/fedledger/coordinator/mocks"
	"github.com/absmach/fedledger/pkg/history"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/registry"
	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/fedledger/pkg/storage/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*mocks.Service, checkpoints.Service) {
	t.Helper()

	coord := new(mocks.Service)
	cts := httptest.NewServer(coordinatorapi.MakeHandler(coord, logger, "coord"))
	t.Cleanup(cts.Close)

	ledgerSvc := checkpoints.NewService(storage.NewMemoryRepository(), checkpoints.Config{Threshold: 5}, logger)
	lts := httptest.NewServer(checkpointsapi.MakeHandler(ledgerSvc, logger, "ledger"))
	t.Cleanup(lts.Close)

	cli.SetSDK(sdk.NewSDK(sdk.Config{CoordinatorURL: cts.URL, LedgerURL: lts.URL, Timeout: time.Second}))

	return coord, ledgerSvc
}

func execute(cmd *cobra.Command, args ...string) (string, string) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	_ = cmd.Execute()

	return out.String(), errOut.String()
}

func TestCoordinatorCmd(t *testing.T) {
	coord, _ := setup(t)
	coord.On("Status", mock.Anything).Return(coordinator.Status{State: coordinator.Checkpointing, Session: 4, Round: 2}, nil)
	h := history.New(4)
	h.AddLoss(1, 0.25)
	coord.On("History", mock.Anything).Return(h.Snapshot(), nil)
	coord.On("ListClients", mock.Anything, uint64(0), uint64(10)).Return(coordinator.ClientPage{
		Limit:   10,
		Total:   1,
		Clients: []registry.Handle{{ID: "client-42", Reachable: true}},
	}, nil)
	coord.On("RemoveClient", mock.Anything, "client-42").Return(nil)

	cases := []struct {
		desc   string
		args   []string
		out    string
		errOut string
	}{
		{desc: "status", args: []string{"status"}, out: "Checkpointing"},
		{desc: "history", args: []string{"history"}, out: "0.25"},
		{desc: "clients", args: []string{"clients"}, out: "client-42"},
		{desc: "clients bad offset", args: []string{"clients", "x"}, errOut: "invalid offset"},
		{desc: "remove", args: []string{"remove", "client-42"}, out: "ok"},
		{desc: "remove usage", args: []string{"remove"}, out: "usage"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			out, errOut := execute(cli.NewCoordinatorCmd(), tc.args...)
			if tc.out != "" {
				assert.Contains(t, out, tc.out)
			}
			if tc.errOut != "" {
				assert.Contains(t, errOut, tc.errOut)
			}
		})
	}
}

func TestCheckpointsCmd(t *testing.T) {
	_, ledgerSvc := setup(t)

	out, _ := execute(cli.NewCheckpointsCmd(), "latest", "org1")
	assert.Contains(t, out, "No checkpoint recorded for org1")

	cp, err := ledgerSvc.Create(context.Background(), ledger.ContractGlobal, testutil.TestCheckpoint("org1", 2, 1))
	require.NoError(t, err)

	out, _ = execute(cli.NewCheckpointsCmd(), "latest", "org1")
	assert.Contains(t, out, cp.ID)

	out, _ = execute(cli.NewCheckpointsCmd(), "list", "org1", "0", "5")
	assert.Contains(t, out, cp.ID)

	out, _ = execute(cli.NewCheckpointsCmd(), "view", cp.ID)
	assert.Contains(t, out, cp.Hash)

	_, errOut := execute(cli.NewCheckpointsCmd(), "view", "missing")
	assert.Contains(t, errOut, "CP404")
}

func TestHashCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.cbor")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))
	const abc = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	out, _ := execute(cli.NewHashCmd(), path)
	assert.Equal(t, abc+"\n", out)

	out, _ = execute(cli.NewHashCmd(), path, "--verify", abc)
	assert.Equal(t, abc+"\n", out)

	_, errOut := execute(cli.NewHashCmd(), path, "--verify", "deadbeef")
	assert.Contains(t, errOut, "content hash mismatch")

	_, errOut = execute(cli.NewHashCmd(), filepath.Join(t.TempDir(), "missing"))
	assert.Contains(t, errOut, "no such file")
}
