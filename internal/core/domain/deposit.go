package domain

import "time"

type DepositStatus string

const (
	DepositStatusValid   DepositStatus = "valid"
	DepositStatusInvalid DepositStatus = "invalid"
)

// Deposit is one observed call to the beacon deposit contract, keyed by Hash.
type Deposit struct {
	Hash           string        `json:"hash"            db:"hash"`
	BlockNumber    uint64        `json:"block_number"    db:"block_number"`
	BlockTimestamp uint64        `json:"block_timestamp" db:"block_timestamp"`
	Fee            string        `json:"fee"             db:"fee"` // wei, base 10
	Pubkey         string        `json:"pubkey,omitempty" db:"pubkey"`
	Status         DepositStatus `json:"status"          db:"status"`
	CreatedAt      time.Time     `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"      db:"updated_at"`
}

// HasPubkey reports whether the validator key was decoded.
func (d *Deposit) HasPubkey() bool {
	return d.Pubkey != ""
}

// IsValid reports whether the deposit is still believed canonical.
func (d *Deposit) IsValid() bool {
	return d.Status == DepositStatusValid
}
