package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oms/backend/internal/domain/fulfillment"
)

func TestExecutors_KindBinding(t *testing.T) {
	tests := []struct {
		executor TaskExecutor
		kind     fulfillment.TaskKind
	}{
		{NewIngestionExecutor(nil, 0, 0), fulfillment.TaskIngestion},
		{NewUploadExecutor(nil, 0), fulfillment.TaskUpload},
		{NewStatusSyncExecutor(nil, 0), fulfillment.TaskStatusSync},
		{NewLotSyncExecutor(nil), fulfillment.TaskLotSync},
		{NewDuplicateScanExecutor(nil, 0), fulfillment.TaskDuplicateScan},
		{NewLedgerRefreshExecutor(nil), fulfillment.TaskLedgerRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.executor.Kind())
		})
	}
}

func TestExecutors_LookbackDefaults(t *testing.T) {
	assert.Equal(t, DefaultIngestionLookback, NewIngestionExecutor(nil, 0, 0).lookback)
	assert.Equal(t, DefaultStatusSyncLookback, NewStatusSyncExecutor(nil, 0).lookback)
	assert.Equal(t, DefaultDuplicateScanLookback, NewDuplicateScanExecutor(nil, 0).lookback)

	assert.Equal(t, 15*time.Minute, NewStatusSyncExecutor(nil, 15*time.Minute).lookback)
}
