package domain

import "time"

// Transfer is the immutable record of a completed player move.
type Transfer struct {
	CreatedAt    time.Time
	ID           string
	OfferID      string
	PlayerID     string
	PlayerName   string
	SellerClubID string
	BuyerClubID  string
	Fee          int64
}

// Validate validates a transfer record before it is written.
func (t *Transfer) Validate() error {
	if t.SellerClubID == t.BuyerClubID {
		return ErrSelfDealing
	}

	if t.Fee <= 0 {
		return ErrInvalidAmount
	}

	return nil
}

// TransferFilter narrows transfer history. Empty fields are ignored.
type TransferFilter struct {
	PlayerID string
	ClubID   string
	Limit    int
	Offset   int
}
