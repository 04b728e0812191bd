// Package ledger defines the durable checkpoint record and the contract of the
// append-only ledger that stores it.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	DocTypeGlobal = "globalCheckpoint"
	DocTypeLocal  = "localCheckpoint"

	ContractGlobal = "GlobalLearningContract"
	ContractLocal  = "LocalLearningContract"

	// MetricAccuracy is recorded as the checkpoint's current accuracy.
	MetricAccuracy = "accuracy"
	// MetricTrainLoss is recorded as a local checkpoint's loss.
	MetricTrainLoss = "train_loss"
)

var (
	// ErrRejected is a validation failure reported by the ledger. It is
	// never retried.
	ErrRejected = errors.New("checkpoint rejected by ledger")

	// ErrTransport means the ledger could not be reached or answered with
	// an unexpected error. It never means "no record".
	ErrTransport = errors.New("ledger transport failure")

	ErrNotFound = errors.New("checkpoint not found")
)

// Checkpoint is immutable once submitted.
type Checkpoint struct {
	ID              string             `json:"ID"`
	Hash            string             `json:"Hash"`
	URL             string             `json:"URL"`
	Owner           string             `json:"Owner"`
	Algorithm       string             `json:"Algorithm"`
	HighestAccuracy float64            `json:"HighestAccuracy"`
	CurAccuracy     float64            `json:"CurAccuracy"`
	Loss            float64            `json:"Loss"`
	Metrics         map[string]float64 `json:"Metrics,omitempty"`
	Round           int                `json:"Round"`
	FedSession      int                `json:"FedSession"`
	DocType         string             `json:"docType"`
	CreatedAt       time.Time          `json:"CreatedAt,omitzero"`
}

// Ledger is the orchestrator's view of the checkpoint ledger.
type Ledger interface {
	// QueryLatest returns nil and no error when the owner has no record.
	QueryLatest(ctx context.Context, owner string) (*Checkpoint, error)

	Submit(ctx context.Context, cp Checkpoint) error
}

// Browser exposes read access beyond the latest record.
type Browser interface {
	Get(ctx context.Context, id string) (Checkpoint, error)
	List(ctx context.Context, owner string) ([]Checkpoint, error)
}

// ComputeContentHash returns the hex SHA-256 digest of the payload bytes.
func ComputeContentHash(payload []byte) string {
	return digest.SHA256.FromBytes(payload).Encoded()
}

func NextSession(latest *Checkpoint) int {
	if latest == nil {
		return 1
	}

	return latest.FedSession + 1
}

func CheckpointID(session, round int, hash string) string {
	return fmt.Sprintf("gmodel_fs%d_r%d_%s", session, round, hash)
}

// LocalCheckpointID names the record of one client's update in a round.
func LocalCheckpointID(session, round int, clientID, hash string) string {
	return fmt.Sprintf("model_fs%d_r%d_c%s_%s", session, round, clientID, hash)
}

// Accuracy picks the accuracy metric out of a snapshot, 0 when absent.
func Accuracy(metrics map[string]float64) float64 {
	return metrics[MetricAccuracy]
}

// SortNewestFirst orders records by session, then round, then creation
// time, all descending.
func SortNewestFirst(cps []Checkpoint) {
	slices.SortFunc(cps, func(a, b Checkpoint) int {
		if c := cmp.Compare(b.FedSession, a.FedSession); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Round, a.Round); c != 0 {
			return c
		}

		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
