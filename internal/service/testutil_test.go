package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/db"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/realtime"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	farmerUID     = "farmer-1"
	wholesalerUID = "wholesaler-1"
	outsiderUID   = "outsider-1"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, ev realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroadcaster) Events() []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.Event(nil), b.events...)
}

func (b *recordingBroadcaster) Types() []string {
	var out []string
	for _, ev := range b.Events() {
		out = append(out, ev.Type)
	}
	return out
}

func (b *recordingBroadcaster) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

type testEnv struct {
	db           *gorm.DB
	repos        repository.Repositories
	uow          repository.UnitOfWork
	clock        *testClock
	broadcaster  *recordingBroadcaster
	relay        EventRelay
	notify       NotificationService
	negotiations NegotiationService
	chats        ChatService
	orders       OrderService
	samples      SampleService
	crops        CropService
}

type envOption func(*NegotiationOptions)

func withStrictTurns(strict bool) envOption {
	return func(o *NegotiationOptions) { o.StrictTurns = strict }
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gdb := newTestDB(t)
	return newTestEnvWithUoW(t, gdb, repository.NewUnitOfWork(gdb), opts...)
}

func newTestEnvWithUoW(t *testing.T, gdb *gorm.DB, uow repository.UnitOfWork, opts ...envOption) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	repos := repository.NewRepositories(gdb)
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	bc := &recordingBroadcaster{}
	relay := NewEventRelay(repos.Events, bc, log)
	notify := NewNotificationService(repos.Notifications, log)

	nopts := NegotiationOptions{TTL: 72 * time.Hour, StrictTurns: true, Now: clock.Now}
	for _, o := range opts {
		o(&nopts)
	}
	env := &testEnv{
		db:           gdb,
		repos:        repos,
		uow:          uow,
		clock:        clock,
		broadcaster:  bc,
		relay:        relay,
		notify:       notify,
		negotiations: NewNegotiationService(repos, uow, relay, notify, nopts, log),
		chats:        NewChatService(repos, uow, relay, notify, log),
		orders:       NewOrderService(repos, uow, relay, notify, nil, log),
		samples:      NewSampleService(repos, uow, notify, log),
		crops:        NewCropService(repos.Crops),
	}
	env.chats.(*chatService).now = clock.Now
	env.orders.(*orderService).now = clock.Now
	env.samples.(*sampleService).now = clock.Now
	return env
}

func (e *testEnv) seedCrop(t *testing.T, farmer string, referencePrice float64) *model.Crop {
	t.Helper()
	crop, err := e.crops.Create(context.Background(), &model.Crop{
		FarmerUID:         farmer,
		Name:              "Basmati rice",
		Category:          "grain",
		Season:            "kharif",
		ReferencePrice:    referencePrice,
		Unit:              "quintal",
		AvailableQuantity: 500,
	})
	require.NoError(t, err)
	return crop
}

func (e *testEnv) start(t *testing.T, crop *model.Crop, initialPrice float64, qty float64) *model.Negotiation {
	t.Helper()
	n, err := e.negotiations.Start(context.Background(), StartNegotiationInput{
		CropID:        crop.ID,
		WholesalerUID: wholesalerUID,
		InitialPrice:  &initialPrice,
		Quantity:      model.Quantity{Value: qty, Unit: "quintal"},
	})
	require.NoError(t, err)
	return n
}

func (e *testEnv) messages(t *testing.T, negotiationID uint64) []model.ChatMessage {
	t.Helper()
	_, msgs, err := e.chats.GetThread(context.Background(), negotiationID, farmerUID)
	require.NoError(t, err)
	return msgs
}

func (e *testEnv) reload(t *testing.T, id uint64) *model.Negotiation {
	t.Helper()
	n, err := e.repos.Negotiations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return n
}
