package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
	"github.com/iho/clubmarket/internal/usecase/mocks"
)

func TestSettlement_AcceptCounterOffer(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-x", 1_000_000)
	m.addClub(t, "club-y", 250_000)
	m.addPlayer(t, "player-p", "Pavel Nedved", "club-y", true)

	offer := m.bid(t, "player-p", "club-x", 500_000)

	countered, err := m.offer.CounterOffer(ctx, usecase.CounterOfferInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		Message: "final price.",
		Amount:  600_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusCounterOffered, countered.Status)

	result, err := m.offer.RespondToCounter(ctx, usecase.RespondInput{
		OfferID: offer.ID,
		Party:   domain.PartyBuyer,
		Accept:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Settlement)

	assert.Equal(t, domain.OfferStatusAccepted, result.Offer.Status)
	assert.Equal(t, "club-x", m.playerClub(t, "player-p"))
	assert.Equal(t, int64(400_000), m.balance(t, "club-x"))
	assert.Equal(t, int64(850_000), m.balance(t, "club-y"))

	transfers, err := m.transfers.List(ctx, domain.TransferFilter{PlayerID: "player-p"})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(600_000), transfers[0].Fee)
	assert.Equal(t, offer.ID, transfers[0].OfferID)

	assert.Equal(t, int64(-600_000), result.Settlement.BuyerTransaction.Effect)
	assert.Equal(t, int64(600_000), result.Settlement.SellerTransaction.Effect)
	assert.Equal(t, offer.ID, result.Settlement.BuyerTransaction.RelatedID)
	assert.Equal(t, domain.CategoryTransfer, result.Settlement.SellerTransaction.Category)

	player, err := m.players.GetByID(ctx, "player-p")
	require.NoError(t, err)
	assert.False(t, player.TransferListed)

	m.assertReplay(t, "club-x")
	m.assertReplay(t, "club-y")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Settlements))
	assert.Equal(t, 1, testutil.CollectAndCount(m.metrics.SettlementDuration))
}

func TestSettlement_CascadeRejectsCompetingOffers(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-a", 1_000)
	m.addClub(t, "club-b", 1_000)
	m.addClub(t, "club-c", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Rui Costa", "club-seller", true)

	offerA := m.bid(t, "player-p", "club-a", 300)
	offerB := m.bid(t, "player-p", "club-b", 350)
	offerC := m.bid(t, "player-p", "club-c", 400)

	// A countered offer is still open and must be swept too.
	_, err := m.offer.CounterOffer(ctx, usecase.CounterOfferInput{
		OfferID: offerC.ID,
		Party:   domain.PartySeller,
		Amount:  500,
	})
	require.NoError(t, err)

	result, err := m.offer.RespondToInitial(ctx, usecase.RespondInput{
		OfferID: offerA.ID,
		Party:   domain.PartySeller,
		Accept:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OfferStatusAccepted, m.offerStatus(t, offerA.ID))
	assert.Equal(t, domain.OfferStatusRejected, m.offerStatus(t, offerB.ID))
	assert.Equal(t, domain.OfferStatusRejected, m.offerStatus(t, offerC.ID))
	assert.Len(t, result.Settlement.Rejected, 2)

	assert.Equal(t, int64(700), m.balance(t, "club-a"))
	assert.Equal(t, int64(1_000), m.balance(t, "club-b"))
	assert.Equal(t, int64(1_000), m.balance(t, "club-c"))
	assert.Equal(t, int64(300), m.balance(t, "club-seller"))

	rejectedEvents := 0
	for _, eventType := range m.outbox.EventTypes() {
		if eventType == domain.EventTypeOfferRejected {
			rejectedEvents++
		}
	}
	assert.Equal(t, 2, rejectedEvents)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.CascadeRejections))

	// A rejected competitor can no longer be accepted.
	_, err = m.offer.RespondToInitial(ctx, usecase.RespondInput{
		OfferID: offerB.ID,
		Party:   domain.PartySeller,
		Accept:  true,
	})
	assert.ErrorIs(t, err, domain.ErrOfferNotPending)
	assert.Equal(t, "club-a", m.playerClub(t, "player-p"))
}

func TestSettlement_InsufficientFundsLeavesEverythingUntouched(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 100)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Luis Figo", "club-seller", true)

	offer := m.bid(t, "player-p", "club-buyer", 150)
	txnsBefore := len(m.wallets.Transactions())

	_, err := m.offer.RespondToInitial(ctx, usecase.RespondInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		Accept:  true,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, offer.ID))
	assert.Equal(t, "club-seller", m.playerClub(t, "player-p"))
	assert.Equal(t, int64(100), m.balance(t, "club-buyer"))
	assert.Len(t, m.wallets.Transactions(), txnsBefore)

	transfers, err := m.transfers.List(ctx, domain.TransferFilter{})
	require.NoError(t, err)
	assert.Empty(t, transfers)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.SettlementFailures.WithLabelValues("insufficient_funds")))
}

func TestSettlement_InsufficientFundsOnCounterKeepsCounter(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 100)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Luis Figo", "club-seller", true)

	offer := m.bid(t, "player-p", "club-buyer", 90)
	_, err := m.offer.CounterOffer(ctx, usecase.CounterOfferInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		Amount:  150,
	})
	require.NoError(t, err)

	_, err = m.offer.RespondToCounter(ctx, usecase.RespondInput{
		OfferID: offer.ID,
		Party:   domain.PartyBuyer,
		Accept:  true,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.OfferStatusCounterOffered, m.offerStatus(t, offer.ID))
}

func TestSettlement_FailureMidwayRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 500)
	m.addClub(t, "club-rival", 1_000)
	m.addPlayer(t, "player-p", "Zinedine Zidane", "club-seller", true)

	offer := m.bid(t, "player-p", "club-buyer", 400)
	competitor := m.bid(t, "player-p", "club-rival", 300)

	txnsBefore := len(m.wallets.Transactions())
	eventsBefore := len(m.outbox.EventTypes())

	boom := errors.New("disk full")
	m.transfers.CreateFunc = func(context.Context, usecase.Transaction, *domain.Transfer) error {
		return boom
	}

	_, err := m.offer.RespondToInitial(ctx, usecase.RespondInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		Accept:  true,
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, offer.ID))
	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, competitor.ID))
	assert.Equal(t, "club-seller", m.playerClub(t, "player-p"))
	assert.Equal(t, int64(1_000), m.balance(t, "club-buyer"))
	assert.Equal(t, int64(500), m.balance(t, "club-seller"))
	assert.Len(t, m.wallets.Transactions(), txnsBefore)
	assert.Len(t, m.outbox.EventTypes(), eventsBefore)
	m.assertReplay(t, "club-buyer")
	m.assertReplay(t, "club-seller")

	player, err := m.players.GetByID(ctx, "player-p")
	require.NoError(t, err)
	assert.True(t, player.TransferListed)
}

func TestSettlement_WrongPartyCannotAccept(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Michael Laudrup", "club-seller", true)

	offer := m.bid(t, "player-p", "club-buyer", 400)

	_, err := m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: offer.ID, Party: domain.PartyBuyer, Accept: true})
	assert.ErrorIs(t, err, domain.ErrNotSeller)

	_, err = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: offer.ID, Party: domain.PartyNone, Accept: true})
	assert.ErrorIs(t, err, domain.ErrNotSeller)

	_, err = m.offer.CounterOffer(ctx, usecase.CounterOfferInput{OfferID: offer.ID, Party: domain.PartySeller, Amount: 600})
	require.NoError(t, err)

	// Roles swap on a counter: only the buyer closes it.
	_, err = m.offer.RespondToCounter(ctx, usecase.RespondInput{OfferID: offer.ID, Party: domain.PartySeller, Accept: true})
	assert.ErrorIs(t, err, domain.ErrNotBuyer)

	_, err = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: offer.ID, Party: domain.PartySeller, Accept: true})
	assert.ErrorIs(t, err, domain.ErrOfferNotPending)

	assert.Equal(t, domain.OfferStatusCounterOffered, m.offerStatus(t, offer.ID))
	assert.Equal(t, int64(1_000), m.balance(t, "club-buyer"))
}

func TestSettlement_PlayerMovedSinceOffer(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addClub(t, "club-other", 0)
	m.addPlayer(t, "player-p", "Hristo Stoichkov", "club-seller", true)

	offer := m.bid(t, "player-p", "club-buyer", 400)

	player, err := m.players.GetByID(ctx, "player-p")
	require.NoError(t, err)
	player.ClubID = ptr("club-other")
	require.NoError(t, m.players.Update(ctx, nil, player, player.Version))

	_, err = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: offer.ID, Party: domain.PartySeller, Accept: true})
	assert.ErrorIs(t, err, domain.ErrPlayerMoved)
	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, offer.ID))
	assert.Equal(t, int64(1_000), m.balance(t, "club-buyer"))
}

func TestSettlement_ConcurrentAcceptsOnSamePlayer(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Ronaldo Nazario", "club-seller", true)

	const bidders = 8
	offers := make([]*domain.Offer, bidders)
	for i := range offers {
		club := "club-" + string(rune('a'+i))
		m.addClub(t, club, 10_000)
		offers[i] = m.bid(t, "player-p", club, int64(1_000+i))
	}

	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i, o := range offers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: id, Party: domain.PartySeller, Accept: true})
		}(i, o.ID)
	}
	wg.Wait()

	accepted := 0
	for i, err := range errs {
		if err == nil {
			accepted++
			assert.Equal(t, domain.OfferStatusAccepted, m.offerStatus(t, offers[i].ID))
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOfferNotPending)
		assert.Equal(t, domain.OfferStatusRejected, m.offerStatus(t, offers[i].ID))
	}
	assert.Equal(t, 1, accepted)

	transfers, err := m.transfers.List(ctx, domain.TransferFilter{PlayerID: "player-p"})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, transfers[0].Fee, m.balance(t, "club-seller"))
}

func TestSettlement_ConcurrentSettlementsShareBuyerBudget(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-buyer", 100)
	m.addClub(t, "club-s1", 0)
	m.addClub(t, "club-s2", 0)
	m.addPlayer(t, "player-1", "Gheorghe Hagi", "club-s1", true)
	m.addPlayer(t, "player-2", "Gica Popescu", "club-s2", true)

	o1 := m.bid(t, "player-1", "club-buyer", 80)
	o2 := m.bid(t, "player-2", "club-buyer", 80)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{o1.ID, o2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: id, Party: domain.PartySeller, Accept: true})
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(20), m.balance(t, "club-buyer"))
	m.assertReplay(t, "club-buyer")
}

func TestSettlement_LockContention(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)

	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Dennis Bergkamp", "club-seller", true)
	offer := m.bid(t, "player-p", "club-buyer", 400)

	locker.EXPECT().
		Acquire(gomock.Any(), usecase.SettlementLockKey("player-p"), usecase.DefaultSettlementLockTTL).
		Return(nil, domain.ErrSettlementInFlight)

	settlement := usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:    m.txMgr,
		OfferRepo:    m.offers,
		ClubRepo:     m.clubs,
		PlayerRepo:   m.players,
		TransferRepo: m.transfers,
		WalletRepo:   m.wallets,
		OutboxRepo:   m.outbox,
		IDGen:        m.idGen,
		Locker:       locker,
	})

	_, err := settlement.Settle(context.Background(), usecase.SettleInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		From:    domain.OfferStatusPending,
	})
	assert.ErrorIs(t, err, domain.ErrSettlementInFlight)
	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, offer.ID))
}

func TestSettlement_ReleasesLockAfterSettling(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)

	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Dennis Bergkamp", "club-seller", true)
	offer := m.bid(t, "player-p", "club-buyer", 400)

	released := false
	locker.EXPECT().
		Acquire(gomock.Any(), "settlement:player:player-p", gomock.Any()).
		Return(func(context.Context) error {
			released = true
			return nil
		}, nil)

	settlement := usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:    m.txMgr,
		OfferRepo:    m.offers,
		ClubRepo:     m.clubs,
		PlayerRepo:   m.players,
		TransferRepo: m.transfers,
		WalletRepo:   m.wallets,
		OutboxRepo:   m.outbox,
		IDGen:        m.idGen,
		Locker:       locker,
	})

	_, err := settlement.Settle(context.Background(), usecase.SettleInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		From:    domain.OfferStatusPending,
	})
	require.NoError(t, err)
	assert.True(t, released)
}

func TestSettlement_RetriesThroughRetrier(t *testing.T) {
	m := newMarket(t)
	m.addClub(t, "club-buyer", 1_000)
	m.addClub(t, "club-seller", 0)
	m.addPlayer(t, "player-p", "Pep Guardiola", "club-seller", true)
	offer := m.bid(t, "player-p", "club-buyer", 400)

	// The first attempt loses a version race on the player row.
	attempts := 0
	m.players.UpdateFunc = func(ctx context.Context, tx usecase.Transaction, p *domain.Player, expected int64) error {
		attempts++
		if attempts == 1 {
			return domain.ErrConcurrentUpdate
		}
		m.players.UpdateFunc = nil
		return m.players.Update(ctx, tx, p, expected)
	}

	retrier := &mocks.MockRetrier{RetryFunc: func(ctx context.Context, op func() error) error {
		var err error
		for i := 0; i < 3; i++ {
			if err = op(); !errors.Is(err, domain.ErrConcurrentUpdate) {
				return err
			}
		}
		return err
	}}

	settlement := usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:    m.txMgr,
		OfferRepo:    m.offers,
		ClubRepo:     m.clubs,
		PlayerRepo:   m.players,
		TransferRepo: m.transfers,
		WalletRepo:   m.wallets,
		OutboxRepo:   m.outbox,
		IDGen:        m.idGen,
		Retrier:      retrier,
	})

	result, err := settlement.Settle(context.Background(), usecase.SettleInput{
		OfferID: offer.ID,
		Party:   domain.PartySeller,
		From:    domain.OfferStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusAccepted, result.Offer.Status)
	assert.Equal(t, int64(600), m.balance(t, "club-buyer"))
	// One seed plus the debit and credit of the successful attempt.
	assert.Len(t, m.wallets.Transactions(), 3)
	assert.EqualValues(t, 1, retrier.Calls.Load())
}

func ptr[T any](v T) *T {
	return &v
}

func TestSettlement_PlayerIsSoldOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.addClub(t, "club-x", 1_000)
	m.addClub(t, "club-y", 0)
	m.addClub(t, "club-z", 1_000)
	m.addPlayer(t, "player-p", "Marc Overmars", "club-y", true)

	first := m.bid(t, "player-p", "club-x", 300)
	_, err := m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: first.ID, Party: domain.PartySeller, Accept: true})
	require.NoError(t, err)
	require.Equal(t, "club-x", m.playerClub(t, "player-p"))

	// The new owner lists the player again and a third club bids.
	_, err = m.club.SetTransferListed(ctx, "player-p", true)
	require.NoError(t, err)
	second := m.bid(t, "player-p", "club-z", 400)

	_, err = m.offer.RespondToInitial(ctx, usecase.RespondInput{OfferID: second.ID, Party: domain.PartySeller, Accept: true})
	require.ErrorIs(t, err, domain.ErrPlayerAlreadySold)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	accepted, err := m.offers.List(ctx, domain.OfferFilter{PlayerID: "player-p", Status: domain.OfferStatusAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)

	assert.Equal(t, domain.OfferStatusPending, m.offerStatus(t, second.ID))
	assert.Equal(t, "club-x", m.playerClub(t, "player-p"))
	assert.Equal(t, int64(1_000), m.balance(t, "club-z"))
	assert.Equal(t, int64(700), m.balance(t, "club-x"))
}

func TestMockOfferRepository_RejectsSecondAcceptedOffer(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewMockOfferRepository()
	now := time.Now().UTC()

	for _, id := range []string{"o1", "o2"} {
		require.NoError(t, repo.Create(ctx, nil, &domain.Offer{
			ID: id, PlayerID: "p1", SellerClubID: "a", BuyerClubID: "b",
			Amount: 10, Status: domain.OfferStatusPending, CreatedAt: now,
		}))
	}

	o1, err := repo.GetByID(ctx, "o1")
	require.NoError(t, err)
	o1.Accept(now)
	require.NoError(t, repo.Update(ctx, nil, o1, 0))

	o2, err := repo.GetByID(ctx, "o2")
	require.NoError(t, err)
	o2.Accept(now)
	assert.ErrorIs(t, repo.Update(ctx, nil, o2, 0), domain.ErrPlayerAlreadySold)
}
