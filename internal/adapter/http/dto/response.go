package dto

import (
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OfferResponse represents an offer in API responses.
type OfferResponse struct {
	ID             string     `json:"id"`
	PlayerID       string     `json:"player_id"`
	PlayerName     string     `json:"player_name"`
	SellerClubID   string     `json:"seller_club_id"`
	BuyerClubID    string     `json:"buyer_club_id"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	CounterAmount  *int64     `json:"counter_amount,omitempty"`
	CounterMessage string     `json:"counter_message,omitempty"`
	AgreedAmount   int64      `json:"agreed_amount"`
	InitiatedBy    string     `json:"initiated_by,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
}

// OfferFromDomain converts domain offer to response.
func OfferFromDomain(o *domain.Offer) *OfferResponse {
	return &OfferResponse{
		ID:             o.ID,
		PlayerID:       o.PlayerID,
		PlayerName:     o.PlayerName,
		SellerClubID:   o.SellerClubID,
		BuyerClubID:    o.BuyerClubID,
		Amount:         o.Amount,
		Status:         string(o.Status),
		CounterAmount:  o.CounterAmount,
		CounterMessage: o.CounterMessage,
		AgreedAmount:   o.AgreedAmount(),
		InitiatedBy:    o.InitiatedBy,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		RespondedAt:    o.RespondedAt,
	}
}

// OffersFromDomain converts domain offers to responses.
func OffersFromDomain(offers []*domain.Offer) []*OfferResponse {
	result := make([]*OfferResponse, len(offers))
	for i, o := range offers {
		result[i] = OfferFromDomain(o)
	}
	return result
}

// ListOffersResponse is a page of offers.
type ListOffersResponse struct {
	Offers []*OfferResponse `json:"offers"`
	Total  int64            `json:"total"`
}

// RespondResponse is the result of answering an offer. Transfer is set when it settled.
type RespondResponse struct {
	Offer             *OfferResponse             `json:"offer"`
	Transfer          *TransferResponse          `json:"transfer,omitempty"`
	BuyerTransaction  *WalletTransactionResponse `json:"buyer_transaction,omitempty"`
	SellerTransaction *WalletTransactionResponse `json:"seller_transaction,omitempty"`
	RejectedOfferIDs  []string                   `json:"rejected_offer_ids,omitempty"`
}

// RespondFromUseCase converts a respond result to response.
func RespondFromUseCase(result *usecase.RespondResult) *RespondResponse {
	resp := &RespondResponse{Offer: OfferFromDomain(result.Offer)}
	if s := result.Settlement; s != nil {
		resp.Transfer = TransferFromDomain(s.Transfer)
		if s.BuyerTransaction != nil {
			resp.BuyerTransaction = WalletTransactionFromDomain(s.BuyerTransaction)
		}
		if s.SellerTransaction != nil {
			resp.SellerTransaction = WalletTransactionFromDomain(s.SellerTransaction)
		}
		for _, o := range s.Rejected {
			resp.RejectedOfferIDs = append(resp.RejectedOfferIDs, o.ID)
		}
	}
	return resp
}

// TransferResponse represents a completed transfer in API responses.
type TransferResponse struct {
	ID           string    `json:"id"`
	OfferID      string    `json:"offer_id"`
	PlayerID     string    `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	SellerClubID string    `json:"seller_club_id"`
	BuyerClubID  string    `json:"buyer_club_id"`
	Fee          int64     `json:"fee"`
	CreatedAt    time.Time `json:"created_at"`
}

// TransferFromDomain converts domain transfer to response.
func TransferFromDomain(t *domain.Transfer) *TransferResponse {
	if t == nil {
		return nil
	}
	return &TransferResponse{
		ID:           t.ID,
		OfferID:      t.OfferID,
		PlayerID:     t.PlayerID,
		PlayerName:   t.PlayerName,
		SellerClubID: t.SellerClubID,
		BuyerClubID:  t.BuyerClubID,
		Fee:          t.Fee,
		CreatedAt:    t.CreatedAt,
	}
}

// TransfersFromDomain converts domain transfers to responses.
func TransfersFromDomain(transfers []*domain.Transfer) []*TransferResponse {
	result := make([]*TransferResponse, len(transfers))
	for i, t := range transfers {
		result[i] = TransferFromDomain(t)
	}
	return result
}

// ListTransfersResponse is a page of transfers.
type ListTransfersResponse struct {
	Transfers []*TransferResponse `json:"transfers"`
	Total     int64               `json:"total"`
}

// WalletResponse represents a wallet account in API responses.
type WalletResponse struct {
	AccountID string    `json:"account_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletFromDomain converts domain account to response.
func WalletFromDomain(a *domain.WalletAccount) *WalletResponse {
	return &WalletResponse{
		AccountID: a.ID,
		Balance:   a.Balance,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
	}
}

// WalletTransactionResponse represents a ledger row in API responses.
type WalletTransactionResponse struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Type           string    `json:"type"`
	Category       string    `json:"category"`
	Reason         string    `json:"reason"`
	RelatedID      string    `json:"related_id,omitempty"`
	Effect         int64     `json:"effect"`
	BalanceBefore  int64     `json:"balance_before"`
	BalanceAfter   int64     `json:"balance_after"`
	AccountVersion int64     `json:"account_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// WalletTransactionFromDomain converts domain transaction to response.
func WalletTransactionFromDomain(t *domain.WalletTransaction) *WalletTransactionResponse {
	return &WalletTransactionResponse{
		ID:             t.ID,
		AccountID:      t.AccountID,
		Type:           string(t.Type),
		Category:       t.Category,
		Reason:         t.Reason,
		RelatedID:      t.RelatedID,
		Effect:         t.Effect,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		AccountVersion: t.AccountVersion,
		CreatedAt:      t.CreatedAt,
	}
}

// WalletTransactionsFromDomain converts domain transactions to responses.
func WalletTransactionsFromDomain(txns []*domain.WalletTransaction) []*WalletTransactionResponse {
	result := make([]*WalletTransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = WalletTransactionFromDomain(t)
	}
	return result
}

// ListWalletTransactionsResponse is a page of ledger rows.
type ListWalletTransactionsResponse struct {
	Transactions []*WalletTransactionResponse `json:"transactions"`
	Total        int64                        `json:"total"`
}

// MarketResponse reports the transfer window.
type MarketResponse struct {
	Open bool `json:"open"`
}

// RuleResponse represents an automatic rule in API responses.
type RuleResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Trigger   string    `json:"trigger"`
	Delta     int64     `json:"delta"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RuleFromDomain converts domain rule to response.
func RuleFromDomain(r *domain.Rule) *RuleResponse {
	return &RuleResponse{
		ID:        r.ID,
		Name:      r.Name,
		Trigger:   r.Trigger,
		Delta:     r.Delta,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

// RulesFromDomain converts domain rules to responses.
func RulesFromDomain(rules []*domain.Rule) []*RuleResponse {
	result := make([]*RuleResponse, len(rules))
	for i, r := range rules {
		result[i] = RuleFromDomain(r)
	}
	return result
}

// FireRuleResponse lists the postings a trigger produced.
type FireRuleResponse struct {
	Trigger      string                       `json:"trigger"`
	AccountID    string                       `json:"account_id"`
	Transactions []*WalletTransactionResponse `json:"transactions"`
}

// ClubResponse represents a club and its ledger-derived budget.
type ClubResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Budget    int64     `json:"budget"`
	CreatedAt time.Time `json:"created_at"`
}

// ClubFromDomain converts a club view to response.
func ClubFromDomain(c *domain.ClubView) *ClubResponse {
	return &ClubResponse{
		ID:        c.ID,
		Name:      c.Name,
		Budget:    c.Budget,
		CreatedAt: c.CreatedAt,
	}
}

// PlayerResponse represents a player in API responses.
type PlayerResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ClubID         *string   `json:"club_id"`
	TransferListed bool      `json:"transfer_listed"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PlayerFromDomain converts domain player to response.
func PlayerFromDomain(p *domain.Player) *PlayerResponse {
	return &PlayerResponse{
		ID:             p.ID,
		Name:           p.Name,
		ClubID:         p.ClubID,
		TransferListed: p.TransferListed,
		Version:        p.Version,
		UpdatedAt:      p.UpdatedAt,
	}
}

// PlayersFromDomain converts domain players to responses.
func PlayersFromDomain(players []*domain.Player) []*PlayerResponse {
	result := make([]*PlayerResponse, len(players))
	for i, p := range players {
		result[i] = PlayerFromDomain(p)
	}
	return result
}

// ReconciliationResponse compares a cached balance with its replayed ledger.
type ReconciliationResponse struct {
	AccountID         string    `json:"account_id"`
	RecordedBalance   int64     `json:"recorded_balance"`
	CalculatedBalance int64     `json:"calculated_balance"`
	Difference        int64     `json:"difference"`
	IsReconciled      bool      `json:"is_reconciled"`
	LastChecked       time.Time `json:"last_checked"`
}

// ReconciliationFromUseCase converts a reconciliation result to response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes a full ledger check.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	LedgerConsistent   bool                      `json:"ledger_consistent"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReconciliationReportFromUseCase converts a report to response.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      make([]*ReconciliationResponse, len(r.Discrepancies)),
		LedgerConsistent:   r.LedgerConsistent,
		CheckedAt:          r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = ReconciliationFromUseCase(d)
	}
	return resp
}

// RepairItemResponse is the outcome for one dangling offer.
type RepairItemResponse struct {
	OfferID      string   `json:"offer_id"`
	OldPlayerID  string   `json:"old_player_id"`
	PlayerName   string   `json:"player_name"`
	NewPlayerID  string   `json:"new_player_id,omitempty"`
	Outcome      string   `json:"outcome"`
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

// RepairReportResponse summarizes an offer relink run.
type RepairReportResponse struct {
	Items     []RepairItemResponse `json:"items"`
	Relinked  int                  `json:"relinked"`
	Unchanged int                  `json:"unchanged"`
	DryRun    bool                 `json:"dry_run"`
}

// RepairReportFromUseCase converts a repair report to response.
func RepairReportFromUseCase(r *usecase.RepairReport) *RepairReportResponse {
	resp := &RepairReportResponse{
		Items:     make([]RepairItemResponse, len(r.Items)),
		Relinked:  r.Relinked,
		Unchanged: r.Unchanged,
		DryRun:    r.DryRun,
	}
	for i, item := range r.Items {
		resp.Items[i] = RepairItemResponse{
			OfferID:      item.OfferID,
			OldPlayerID:  item.OldPlayerID,
			PlayerName:   item.PlayerName,
			NewPlayerID:  item.NewPlayerID,
			Outcome:      item.Outcome,
			CandidateIDs: item.CandidateIDs,
		}
	}
	return resp
}
