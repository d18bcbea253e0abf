package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
	"github.com/iho/clubmarket/internal/usecase"
	"github.com/iho/clubmarket/internal/usecase/mocks"
)

// market wires every use case over the in-memory mocks.
type market struct {
	txMgr     *mocks.MockTransactionManager
	offers    *mocks.MockOfferRepository
	clubs     *mocks.MockClubRepository
	players   *mocks.MockPlayerRepository
	transfers *mocks.MockTransferRepository
	wallets   *mocks.MockWalletRepository
	rules     *mocks.MockRuleRepository
	outbox    *mocks.MockOutboxRepository
	audit     *mocks.MockAuditRepository
	idGen     *mocks.MockIDGenerator
	locker    *mocks.MockPlayerLocker
	gate      *mocks.FakeMarketGate
	metrics   *metrics.Metrics

	wallet     *usecase.WalletUseCase
	settlement *usecase.SettlementUseCase
	offer      *usecase.OfferUseCase
	club       *usecase.ClubUseCase
	window     *usecase.MarketUseCase
	rule       *usecase.RuleUseCase
}

func newMarket(t *testing.T) *market {
	t.Helper()
	return newMarketWithPolicy(t, domain.CounterPolicy{})
}

func newMarketWithPolicy(t *testing.T, policy domain.CounterPolicy) *market {
	t.Helper()

	m := &market{
		txMgr:     mocks.NewMockTransactionManager(),
		offers:    mocks.NewMockOfferRepository(),
		clubs:     mocks.NewMockClubRepository(),
		players:   mocks.NewMockPlayerRepository(),
		transfers: mocks.NewMockTransferRepository(),
		wallets:   mocks.NewMockWalletRepository(),
		rules:     mocks.NewMockRuleRepository(),
		outbox:    mocks.NewMockOutboxRepository(),
		audit:     mocks.NewMockAuditRepository(),
		idGen:     mocks.NewMockIDGenerator(),
		locker:    mocks.NewMockPlayerLocker(),
		gate:      mocks.NewFakeMarketGate(true),
		metrics:   metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}
	m.offers.Players = m.players

	m.wallet = usecase.NewWalletUseCase(m.txMgr, m.wallets, m.rules, m.outbox, m.audit, m.idGen, nil, m.metrics)
	m.settlement = usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:    m.txMgr,
		OfferRepo:    m.offers,
		ClubRepo:     m.clubs,
		PlayerRepo:   m.players,
		TransferRepo: m.transfers,
		WalletRepo:   m.wallets,
		OutboxRepo:   m.outbox,
		AuditRepo:    m.audit,
		IDGen:        m.idGen,
		Locker:       m.locker,
		Metrics:      m.metrics,
	})
	m.offer = usecase.NewOfferUseCase(usecase.OfferConfig{
		TxManager:  m.txMgr,
		OfferRepo:  m.offers,
		ClubRepo:   m.clubs,
		PlayerRepo: m.players,
		OutboxRepo: m.outbox,
		IDGen:      m.idGen,
		Gate:       m.gate,
		Settlement: m.settlement,
		Policy:     policy,
		Metrics:    m.metrics,
	})
	m.club = usecase.NewClubUseCase(m.txMgr, m.clubs, m.players, m.audit, m.wallet, m.idGen)
	m.window = usecase.NewMarketUseCase(m.txMgr, m.gate, m.outbox, m.audit, m.idGen, m.metrics)
	m.rule = usecase.NewRuleUseCase(m.txMgr, m.rules, m.idGen)

	return m
}

func (m *market) addClub(t *testing.T, id string, budget int64) {
	t.Helper()
	if err := m.clubs.Create(context.Background(), nil, &domain.Club{ID: id, Name: "Club " + id, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create club %s: %v", id, err)
	}
	if budget > 0 {
		m.wallets.Seed(id, budget)
	}
}

func (m *market) addPlayer(t *testing.T, id, name, clubID string, listed bool) {
	t.Helper()
	p := &domain.Player{ID: id, Name: name, TransferListed: listed, UpdatedAt: time.Now()}
	if clubID != "" {
		p.ClubID = &clubID
	}
	if err := m.players.Create(context.Background(), nil, p); err != nil {
		t.Fatalf("create player %s: %v", id, err)
	}
}

func (m *market) bid(t *testing.T, playerID, buyerID string, amount int64) *domain.Offer {
	t.Helper()
	offer, err := m.offer.CreateOffer(context.Background(), usecase.CreateOfferInput{
		PlayerID:    playerID,
		BuyerClubID: buyerID,
		InitiatedBy: "user-" + buyerID,
		Amount:      amount,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return offer
}

func (m *market) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	b, err := m.wallet.GetBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance %s: %v", accountID, err)
	}
	return b
}

func (m *market) offerStatus(t *testing.T, id string) domain.OfferStatus {
	t.Helper()
	o, err := m.offers.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get offer %s: %v", id, err)
	}
	return o.Status
}

func (m *market) playerClub(t *testing.T, id string) string {
	t.Helper()
	p, err := m.players.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get player %s: %v", id, err)
	}
	if p.ClubID == nil {
		return ""
	}
	return *p.ClubID
}

// assertReplay checks that the cached balance equals the sum of recorded effects.
func (m *market) assertReplay(t *testing.T, accountID string) {
	t.Helper()
	sum, _ := m.wallets.SumEffects(context.Background(), accountID)
	if got := m.balance(t, accountID); got != sum {
		t.Errorf("account %s: balance %d, sum of effects %d", accountID, got, sum)
	}
}
