package domain

import "time"

// MaxCounterMessageLength is the maximum length of a counter-offer message, in characters.
const MaxCounterMessageLength = 200

// OfferStatus is the negotiation state of an offer.
type OfferStatus string

const (
	OfferStatusPending        OfferStatus = "pending"
	OfferStatusCounterOffered OfferStatus = "counter-offered"
	OfferStatusAccepted       OfferStatus = "accepted"
	OfferStatusRejected       OfferStatus = "rejected"
)

var validOfferStatuses = map[OfferStatus]bool{
	OfferStatusPending:        true,
	OfferStatusCounterOffered: true,
	OfferStatusAccepted:       true,
	OfferStatusRejected:       true,
}

// IsValid reports whether s is a known status.
func (s OfferStatus) IsValid() bool {
	return validOfferStatuses[s]
}

// IsTerminal reports whether no transition leaves s.
func (s OfferStatus) IsTerminal() bool {
	return s == OfferStatusAccepted || s == OfferStatusRejected
}

// Offer is a bid by the buyer club for a player owned by the seller club.
type Offer struct {
	CreatedAt      time.Time
	RespondedAt    *time.Time
	CounterAmount  *int64
	ID             string
	PlayerID       string
	PlayerName     string
	SellerClubID   string
	BuyerClubID    string
	Status         OfferStatus
	CounterMessage string
	InitiatedBy    string
	Amount         int64
	Version        int64
}

// Validate checks the invariants of a new offer.
func (o *Offer) Validate() error {
	if o.Amount <= 0 {
		return ErrInvalidAmount
	}
	if o.SellerClubID == o.BuyerClubID {
		return ErrSelfDealing
	}
	return nil
}

// PartyOf returns the negotiating side clubID plays in this offer.
func (o *Offer) PartyOf(clubID string) Party {
	switch {
	case clubID == "":
		return PartyNone
	case clubID == o.SellerClubID:
		return PartySeller
	case clubID == o.BuyerClubID:
		return PartyBuyer
	default:
		return PartyNone
	}
}

// InvolvesClub reports whether clubID is the buyer or the seller.
func (o *Offer) InvolvesClub(clubID string) bool {
	return o.PartyOf(clubID) != PartyNone
}

// CanCounter checks that party may raise a counter-offer now.
func (o *Offer) CanCounter(party Party) error {
	if party != PartySeller {
		return ErrNotSeller
	}
	if o.Status != OfferStatusPending {
		return ErrOfferNotPending
	}
	return nil
}

// CanRespondToInitial checks that party may accept or reject the original offer now.
func (o *Offer) CanRespondToInitial(party Party) error {
	if party != PartySeller {
		return ErrNotSeller
	}
	if o.Status != OfferStatusPending {
		return ErrOfferNotPending
	}
	return nil
}

// CanRespondToCounter checks that party may accept or reject the counter-offer now.
// The buyer is the only side allowed to close a counter, mirroring the initial offer.
func (o *Offer) CanRespondToCounter(party Party) error {
	if party != PartyBuyer {
		return ErrNotBuyer
	}
	if o.Status != OfferStatusCounterOffered {
		return ErrOfferNotCountered
	}
	return nil
}

// ApplyCounter moves the offer to counter-offered.
func (o *Offer) ApplyCounter(amount int64, message string, at time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if err := ValidateCounterMessage(message); err != nil {
		return err
	}
	o.CounterAmount = &amount
	o.CounterMessage = message
	o.Status = OfferStatusCounterOffered
	o.RespondedAt = &at
	return nil
}

// Reject moves the offer to rejected.
func (o *Offer) Reject(at time.Time) {
	o.Status = OfferStatusRejected
	o.RespondedAt = &at
}

// Accept moves the offer to accepted.
func (o *Offer) Accept(at time.Time) {
	o.Status = OfferStatusAccepted
	o.RespondedAt = &at
}

// AgreedAmount is the amount settled if the offer is accepted in its current state.
func (o *Offer) AgreedAmount() int64 {
	if o.Status == OfferStatusCounterOffered && o.CounterAmount != nil {
		return *o.CounterAmount
	}
	return o.Amount
}

// OfferFilter narrows offer listings. Empty fields are ignored.
type OfferFilter struct {
	PlayerID string
	ClubID   string
	Status   OfferStatus
	Limit    int
	Offset   int
}
