package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStartNegotiation(t *testing.T) {
	env := newTestEnv(t)
	crop := env.seedCrop(t, farmerUID, 2500)

	n := env.start(t, crop, 2200, 100)

	assert.Equal(t, model.NegotiationOngoing, n.Status)
	assert.Equal(t, farmerUID, n.FarmerUID)
	assert.Equal(t, wholesalerUID, n.WholesalerUID)
	assert.Equal(t, 2200.0, n.InitialPrice)
	assert.Equal(t, 2200.0, n.CurrentOfferAmount)
	assert.Equal(t, model.RoleWholesaler, n.CurrentOfferBy)
	assert.Equal(t, model.Quantity{Value: 100, Unit: "quintal"}, n.AgreedQuantity)
	assert.Equal(t, env.clock.Now().Add(72*time.Hour), n.ExpiresAt)

	stored := env.reload(t, n.ID)
	require.Len(t, stored.Offers, 1)
	assert.Equal(t, model.RoleWholesaler, stored.Offers[0].OfferedBy)
	assert.Equal(t, 2200.0, stored.Offers[0].Amount)

	msgs := env.messages(t, n.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageSystem, msgs[0].MessageType)
	assert.Equal(t, wholesalerUID, msgs[0].SenderUID)
	assert.Equal(t, "Started a negotiation for 100 quintal of Basmati rice at 2200", msgs[0].Content)
}

func TestStartNegotiationWithNote(t *testing.T) {
	env := newTestEnv(t)
	crop := env.seedCrop(t, farmerUID, 2500)
	price := 2200.0

	n, err := env.negotiations.Start(context.Background(), StartNegotiationInput{
		CropID:        crop.ID,
		WholesalerUID: wholesalerUID,
		InitialPrice:  &price,
		Quantity:      model.Quantity{Value: 100, Unit: "quintal"},
		Message:       "  hi there ",
	})
	require.NoError(t, err)

	msgs := env.messages(t, n.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageSystem, msgs[0].MessageType)
	assert.Equal(t, "Started a negotiation for 100 quintal of Basmati rice at 2200. hi there", msgs[0].Content)
	assert.Equal(t, "hi there", env.reload(t, n.ID).Offers[0].Message)
}

func TestStartNegotiationDefaultsToReferencePrice(t *testing.T) {
	env := newTestEnv(t)
	crop := env.seedCrop(t, farmerUID, 2500)

	n, err := env.negotiations.Start(context.Background(), StartNegotiationInput{
		CropID:        crop.ID,
		WholesalerUID: wholesalerUID,
		Quantity:      model.Quantity{Value: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, n.CurrentOfferAmount)
	assert.Equal(t, "quintal", n.AgreedQuantity.Unit)
}

func TestStartNegotiationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	crop := env.seedCrop(t, farmerUID, 2500)
	ctx := context.Background()
	zero := 0.0

	tests := []struct {
		name string
		in   StartNegotiationInput
		want error
	}{
		{"missing crop", StartNegotiationInput{CropID: 999, WholesalerUID: wholesalerUID, Quantity: model.Quantity{Value: 1}}, ErrNotFound},
		{"zero quantity", StartNegotiationInput{CropID: crop.ID, WholesalerUID: wholesalerUID}, ErrValidation},
		{"zero price", StartNegotiationInput{CropID: crop.ID, WholesalerUID: wholesalerUID, InitialPrice: &zero, Quantity: model.Quantity{Value: 1}}, ErrValidation},
		{"own crop", StartNegotiationInput{CropID: crop.ID, WholesalerUID: farmerUID, Quantity: model.Quantity{Value: 1}}, ErrValidation},
		{"no user", StartNegotiationInput{CropID: crop.ID, Quantity: model.Quantity{Value: 1}}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.negotiations.Start(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOfferAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	n, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400})
	require.NoError(t, err)
	require.Len(t, n.Offers, 2)
	assert.Equal(t, 2400.0, n.CurrentOfferAmount)
	assert.Equal(t, model.RoleFarmer, n.CurrentOfferBy)

	msgs := env.messages(t, n.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageOffer, msgs[1].MessageType)
	assert.Equal(t, "Made an offer of 2400", msgs[1].Content)
	assert.Equal(t, model.RoleFarmer, msgs[1].SenderRole)

	n, err = env.negotiations.Accept(ctx, n.ID, wholesalerUID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationAccepted, n.Status)
	require.NotNil(t, n.FinalAgreedPrice)
	require.NotNil(t, n.TotalAmount)
	require.NotNil(t, n.AcceptedBy)
	assert.Equal(t, 2400.0, *n.FinalAgreedPrice)
	assert.Equal(t, 240000.0, *n.TotalAmount)
	assert.Equal(t, model.RoleWholesaler, *n.AcceptedBy)

	msgs = env.messages(t, n.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, model.MessageSystem, msgs[2].MessageType)
	assert.Equal(t, "Accepted the offer of 2400", msgs[2].Content)

	before := env.reload(t, n.ID)
	_, err = env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2600})
	require.ErrorIs(t, err, ErrInvalidState)
	after := env.reload(t, n.ID)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.Offers, 2)
	assert.Len(t, env.messages(t, n.ID), 3)
}

func TestRejectWithReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, "farmer-2", 1800)
	n := env.start(t, crop, 1500, 20)

	n, err := env.negotiations.Reject(ctx, n.ID, "farmer-2", "too low")
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationRejected, n.Status)
	assert.Equal(t, "too low", n.CloseReason)

	_, msgs, err := env.chats.GetThread(ctx, n.ID, "farmer-2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageSystem, msgs[1].MessageType)
	assert.Equal(t, "too low", msgs[1].Content)

	_, err = env.negotiations.Reject(ctx, n.ID, wholesalerUID, "")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestTerminalNegotiationsAreImmutable(t *testing.T) {
	ctx := context.Background()
	closers := map[model.NegotiationStatus]func(env *testEnv, id uint64) error{
		model.NegotiationAccepted: func(env *testEnv, id uint64) error {
			_, err := env.negotiations.Accept(ctx, id, farmerUID)
			return err
		},
		model.NegotiationRejected: func(env *testEnv, id uint64) error {
			_, err := env.negotiations.Reject(ctx, id, farmerUID, "")
			return err
		},
		model.NegotiationCancelled: func(env *testEnv, id uint64) error {
			_, err := env.negotiations.Cancel(ctx, id, wholesalerUID)
			return err
		},
		model.NegotiationExpired: func(env *testEnv, id uint64) error {
			env.clock.Advance(73 * time.Hour)
			_, err := env.negotiations.ExpireOverdue(ctx)
			return err
		},
	}
	for status, closeFn := range closers {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			crop := env.seedCrop(t, farmerUID, 2500)
			n := env.start(t, crop, 2200, 100)
			require.NoError(t, closeFn(env, n.ID))

			before := env.reload(t, n.ID)
			require.Equal(t, status, before.Status)
			msgCount := len(env.messages(t, n.ID))

			for _, uid := range []string{farmerUID, wholesalerUID} {
				_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: uid, Amount: 2300})
				assert.ErrorIs(t, err, ErrInvalidState)
				_, err = env.negotiations.Accept(ctx, n.ID, uid)
				assert.ErrorIs(t, err, ErrInvalidState)
			}

			after := env.reload(t, n.ID)
			assert.Equal(t, before.Version, after.Version)
			assert.Equal(t, before.Status, after.Status)
			assert.Len(t, after.Offers, len(before.Offers))
			assert.Len(t, env.messages(t, n.ID), msgCount)
		})
	}
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	for _, strict := range []bool{true, false} {
		name := "free turns"
		if strict {
			name = "strict turns"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, withStrictTurns(strict))
			crop := env.seedCrop(t, farmerUID, 2500)
			n := env.start(t, crop, 2200, 100)

			var wg sync.WaitGroup
			gate := make(chan struct{})
			errs := make([]error, 2)
			for i, uid := range []string{farmerUID, wholesalerUID} {
				wg.Add(1)
				go func(i int, uid string) {
					defer wg.Done()
					<-gate
					_, errs[i] = env.negotiations.Accept(context.Background(), n.ID, uid)
				}(i, uid)
			}
			close(gate)
			wg.Wait()

			succeeded, invalid := 0, 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrInvalidState):
					invalid++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, succeeded)
			assert.Equal(t, 1, invalid)

			stored := env.reload(t, n.ID)
			assert.Equal(t, model.NegotiationAccepted, stored.Status)
			accepted := 0
			for _, m := range env.messages(t, n.ID) {
				if strings.HasPrefix(m.Content, "Accepted the offer") {
					accepted++
				}
			}
			assert.Equal(t, 1, accepted)
		})
	}
}

func TestHistoryTracksEveryOffer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2000, 50)

	amounts := []float64{2600, 2100, 2500, 2200, 2400}
	for i, amount := range amounts {
		uid := farmerUID
		if i%2 == 1 {
			uid = wholesalerUID
		}
		var err error
		n, err = env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: uid, Amount: amount})
		require.NoError(t, err)
		require.Len(t, n.Offers, i+2)
		last := n.Offers[len(n.Offers)-1]
		assert.Equal(t, last.Amount, n.CurrentOfferAmount)
		assert.Equal(t, last.OfferedBy, n.CurrentOfferBy)
	}

	stored := env.reload(t, n.ID)
	require.Len(t, stored.Offers, 1+len(amounts))
	for i, o := range stored.Offers {
		assert.Equal(t, i+1, o.Seq)
	}
	assert.Equal(t, 2400.0, stored.CurrentOfferAmount)
	assert.Equal(t, model.RoleFarmer, stored.CurrentOfferBy)
	assert.Equal(t, uint64(1+len(amounts)), stored.Version)
}

func TestEveryTransitionPostsOneMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2000, 50)
	require.Len(t, env.messages(t, n.ID), 1)

	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400})
	require.NoError(t, err)
	msgs := env.messages(t, n.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageOffer, msgs[1].MessageType)

	_, err = env.negotiations.Reject(ctx, n.ID, wholesalerUID, "")
	require.NoError(t, err)
	msgs = env.messages(t, n.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, model.MessageSystem, msgs[2].MessageType)
	assert.Equal(t, "Rejected the offer of 2400", msgs[2].Content)

	thread, _, err := env.chats.GetThread(ctx, n.ID, wholesalerUID)
	require.NoError(t, err)
	assert.Equal(t, msgs[2].Content, thread.LastMessageContent)
}

func TestAcceptComputesTotal(t *testing.T) {
	tests := []struct {
		price, qty, want float64
	}{
		{2400, 100, 240000},
		{2333.5, 12.5, 29168.75},
		{19.99, 3, 59.97},
		{1, 0.25, 0.25},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		crop := env.seedCrop(t, farmerUID, 2500)
		n := env.start(t, crop, tt.price, tt.qty)
		n, err := env.negotiations.Accept(context.Background(), n.ID, farmerUID)
		require.NoError(t, err)
		assert.Equal(t, tt.price*tt.qty, *n.TotalAmount)
		assert.InDelta(t, tt.want, *n.TotalAmount, 1e-9)

		stored := env.reload(t, n.ID)
		assert.Equal(t, *n.TotalAmount, *stored.TotalAmount)
		assert.Equal(t, tt.price, *stored.FinalAgreedPrice)
	}
}

func TestStrictTurnTaking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: wholesalerUID, Amount: 2250})
	require.ErrorIs(t, err, ErrNotYourTurn)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = env.negotiations.Accept(ctx, n.ID, wholesalerUID)
	require.ErrorIs(t, err, ErrNotYourTurn)

	assert.Len(t, env.reload(t, n.ID).Offers, 1)
}

func TestFreeTurnsAllowConsecutiveOffers(t *testing.T) {
	env := newTestEnv(t, withStrictTurns(false))
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	n, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: wholesalerUID, Amount: 2250})
	require.NoError(t, err)
	assert.Len(t, n.Offers, 2)
}

func TestMakeOfferIsIdempotentPerKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	in := MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400, IdempotencyKey: "req-1"}
	first, err := env.negotiations.MakeOffer(ctx, in)
	require.NoError(t, err)
	second, err := env.negotiations.MakeOffer(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, second.Offers, 2)
	assert.Len(t, env.messages(t, n.ID), 2)
}

func TestIdempotencyKeysAreScopedToSender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400, IdempotencyKey: "1"})
	require.NoError(t, err)
	got, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: wholesalerUID, Amount: 2300, IdempotencyKey: "1"})
	require.NoError(t, err)

	assert.Equal(t, 2300.0, got.CurrentOfferAmount)
	assert.Equal(t, model.RoleWholesaler, got.CurrentOfferBy)
	stored := env.reload(t, n.ID)
	require.Len(t, stored.Offers, 3)
	assert.Equal(t, model.RoleWholesaler, stored.Offers[2].OfferedBy)
	assert.Len(t, env.messages(t, n.ID), 3)
}

func TestMakeOfferUpdatesQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	n, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{
		NegotiationID: n.ID,
		UID:           farmerUID,
		Amount:        2400,
		Quantity:      &model.Quantity{Value: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, model.Quantity{Value: 80, Unit: "quintal"}, n.AgreedQuantity)

	n, err = env.negotiations.Accept(ctx, n.ID, wholesalerUID)
	require.NoError(t, err)
	assert.Equal(t, 192000.0, *n.TotalAmount)
}

func TestMakeOfferValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	tests := []struct {
		name string
		in   MakeOfferInput
		want error
	}{
		{"zero amount", MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 0}, ErrValidation},
		{"negative amount", MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: -5}, ErrValidation},
		{"long message", MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 10, Message: strings.Repeat("あ", 1001)}, ErrValidation},
		{"zero quantity", MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 10, Quantity: &model.Quantity{}}, ErrValidation},
		{"outsider", MakeOfferInput{NegotiationID: n.ID, UID: outsiderUID, Amount: 10}, ErrForbidden},
		{"missing", MakeOfferInput{NegotiationID: 999, UID: farmerUID, Amount: 10}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.negotiations.MakeOffer(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 10, Message: strings.Repeat("あ", 1000)})
	require.NoError(t, err)
}

func TestMutationPastDeadlineExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	env.clock.Advance(73 * time.Hour)
	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400})
	require.ErrorIs(t, err, ErrInvalidState)

	stored := env.reload(t, n.ID)
	assert.Equal(t, model.NegotiationExpired, stored.Status)
	assert.Len(t, stored.Offers, 1)
	msgs := env.messages(t, n.ID)
	assert.Equal(t, "Negotiation expired", msgs[len(msgs)-1].Content)
}

func TestExpireOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	old := env.start(t, crop, 2200, 100)
	env.clock.Advance(48 * time.Hour)
	fresh := env.start(t, crop, 2300, 10)

	env.clock.Advance(25 * time.Hour)
	expired, err := env.negotiations.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, model.NegotiationExpired, env.reload(t, old.ID).Status)
	assert.Equal(t, model.NegotiationOngoing, env.reload(t, fresh.ID).Status)

	expired, err = env.negotiations.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestCancelNegotiation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	_, err := env.negotiations.Cancel(ctx, n.ID, farmerUID)
	require.ErrorIs(t, err, ErrForbidden)

	n, err = env.negotiations.Cancel(ctx, n.ID, wholesalerUID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationCancelled, n.Status)
	msgs := env.messages(t, n.ID)
	assert.Equal(t, "Negotiation cancelled", msgs[len(msgs)-1].Content)
}

func TestGetNegotiationMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	got, err := env.negotiations.Get(ctx, n.ID, farmerUID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = env.negotiations.Get(ctx, n.ID, outsiderUID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = env.negotiations.Get(ctx, 999, farmerUID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	first := env.start(t, crop, 2200, 100)
	env.clock.Advance(time.Minute)
	second := env.start(t, crop, 2300, 10)

	list, err := env.negotiations.ListForUser(ctx, farmerUID, model.RoleFarmer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = env.negotiations.ListForUser(ctx, farmerUID, model.RoleWholesaler)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = env.negotiations.ListForUser(ctx, farmerUID, model.Role("broker"))
	require.ErrorIs(t, err, ErrValidation)
}

// racingUnitOfWork bumps the negotiation version right before the first
// transaction, as if another writer had committed in between.
type racingUnitOfWork struct {
	repository.UnitOfWork
	db    *gorm.DB
	id    uint64
	fired bool
}

func (u *racingUnitOfWork) Do(ctx context.Context, fn func(r repository.Repositories) error) error {
	if !u.fired && u.id != 0 {
		u.fired = true
		if err := u.db.Exec("UPDATE negotiations SET version = version + 1 WHERE id = ?", u.id).Error; err != nil {
			return err
		}
	}
	return u.UnitOfWork.Do(ctx, fn)
}

func TestVersionConflicts(t *testing.T) {
	gdb := newTestDB(t)
	racing := &racingUnitOfWork{UnitOfWork: repository.NewUnitOfWork(gdb), db: gdb}
	env := newTestEnvWithUoW(t, gdb, racing)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)

	racing.id = n.ID
	offered, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), offered.Version)
	assert.Len(t, env.reload(t, n.ID).Offers, 2)

	racing.fired = false
	_, err = env.negotiations.Accept(ctx, n.ID, wholesalerUID)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.NegotiationOngoing, env.reload(t, n.ID).Status)
}

func TestTransitionsBroadcastEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	crop := env.seedCrop(t, farmerUID, 2500)
	n := env.start(t, crop, 2200, 100)
	assert.Equal(t, []string{"message_posted", "offer_updated"}, env.broadcaster.Types())

	_, err := env.negotiations.MakeOffer(ctx, MakeOfferInput{NegotiationID: n.ID, UID: farmerUID, Amount: 2400})
	require.NoError(t, err)

	events := env.broadcaster.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "message_posted", events[2].Type)
	assert.Equal(t, "offer_updated", events[3].Type)
	for _, ev := range events {
		assert.Equal(t, n.ID, ev.NegotiationID)
		assert.Len(t, ev.ID, 26)
	}
	assert.Contains(t, string(events[3].Data), `"amount":2400`)

	pending, err := env.repos.Events.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
