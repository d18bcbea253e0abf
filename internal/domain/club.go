package domain

import "time"

// Club is a football club. Its wallet account shares the club id.
type Club struct {
	CreatedAt time.Time
	ID        string
	Name      string
}

// AccountID returns the wallet account holding the club budget.
func (c *Club) AccountID() string {
	return c.ID
}

// ClubView is a club with its budget derived from the wallet ledger.
type ClubView struct {
	Club
	Budget int64
}

// Player is the roster subset the transfer market needs.
type Player struct {
	UpdatedAt      time.Time
	ClubID         *string
	ID             string
	Name           string
	TransferListed bool
	Version        int64
}

// IsFreeAgent reports whether the player has no club.
func (p *Player) IsFreeAgent() bool {
	return p.ClubID == nil || *p.ClubID == ""
}

// BelongsTo reports whether the player is currently registered to clubID.
func (p *Player) BelongsTo(clubID string) bool {
	return !p.IsFreeAgent() && *p.ClubID == clubID
}

// MoveTo reassigns the player to clubID and takes them off the transfer list.
func (p *Player) MoveTo(clubID string, at time.Time) {
	p.ClubID = &clubID
	p.TransferListed = false
	p.UpdatedAt = at
}
