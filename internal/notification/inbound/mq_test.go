package inbound

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpreset/internal/notification/usecase"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fakeUsecase struct {
	mu  sync.Mutex
	got []usecase.ConsumeResetProvisioningInput
	cID []string
}

func (f *fakeUsecase) ConsumeResetProvisioning(ctx context.Context, in usecase.ConsumeResetProvisioningInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	f.cID = append(f.cID, instrument.GetCorrelationID(ctx))
	return nil
}

func (f *fakeUsecase) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestRegisterMQConsumer(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  notification:
    consumer_names: [reset_provisioning_notification]
    concurrency: 2
`), nil)
	require.NoError(t, err)

	broker := messaging.NewMemory()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	routine := goroutine.NewManager(4)
	uc := &fakeUsecase{}

	started := RegisterMQConsumer(ctx, cfg, routine, broker, fixedID("generated"), uc, instrument.NewNoop())
	assert.Equal(t, []string{event.ResetProvisioningConsumerNotification}, started)
	require.Eventually(t, func() bool { return broker.Subscribers(event.ResetProvisioningDestination) == 1 }, time.Second, 5*time.Millisecond)

	body, err := json.Marshal(event.ResetProvisioningMessage{EventID: "evt-1", Account: "alice", Contact: "alice@example.com", Digits: 6})
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, event.ResetProvisioningDestination, messaging.Message{
		Key:     []byte("alice"),
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: "cid-1"},
	}))
	require.NoError(t, broker.Publish(ctx, event.ResetProvisioningDestination, messaging.Message{Body: []byte("not json")}))
	require.NoError(t, broker.Publish(ctx, event.ResetProvisioningDestination, messaging.Message{Body: body}))

	require.Eventually(t, func() bool { return uc.calls() == 2 }, time.Second, 5*time.Millisecond)

	uc.mu.Lock()
	assert.Equal(t, "evt-1", uc.got[0].EventID)
	assert.Equal(t, "alice@example.com", uc.got[0].Contact)
	assert.ElementsMatch(t, []string{"cid-1", "generated"}, uc.cID)
	uc.mu.Unlock()

	cancel()
	require.NoError(t, routine.Wait())
}

func TestRegisterMQConsumer_Disabled(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules: {notification: {consumer_names: []}}"), nil)
	require.NoError(t, err)

	started := RegisterMQConsumer(context.Background(), cfg, goroutine.NewManager(1), messaging.NewMemory(), fixedID("x"), &fakeUsecase{}, instrument.NewNoop())
	assert.Empty(t, started)
}
