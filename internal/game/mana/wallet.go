package mana

import "fmt"

// Wallet holds one player's mana: the cap their budget refills to and the
// amount they may still spend. Wallets are plain values so a game record can
// be copied and encoded without sharing state.
type Wallet struct {
	Cap       int
	Available int
}

// NewWallet creates a wallet whose cap and available amount both start at
// starting.
func NewWallet(starting int) Wallet {
	if starting < 0 {
		starting = 0
	}
	return Wallet{Cap: starting, Available: starting}
}

// CanAfford reports whether cost can be paid from the available mana.
// Negative costs are never affordable.
func (w Wallet) CanAfford(cost int) bool {
	return cost >= 0 && cost <= w.Available
}

// Spend pays cost from the available mana.
// Returns the updated wallet and true if successful, or the unchanged wallet
// and false if the cost cannot be paid.
func (w Wallet) Spend(cost int) (Wallet, bool) {
	if !w.CanAfford(cost) {
		return w, false
	}
	w.Available -= cost
	return w, true
}

// Grow raises the cap by one, stopping at ceiling. A ceiling of zero or less
// means the cap grows without bound.
func (w Wallet) Grow(ceiling int) Wallet {
	if ceiling > 0 && w.Cap >= ceiling {
		return w
	}
	w.Cap++
	return w
}

// Refill sets the available mana to the cap.
func (w Wallet) Refill() Wallet {
	w.Available = w.Cap
	return w
}

// Valid reports whether 0 <= Available <= Cap.
func (w Wallet) Valid() bool {
	return w.Available >= 0 && w.Available <= w.Cap
}

func (w Wallet) String() string {
	return fmt.Sprintf("%d/%d", w.Available, w.Cap)
}
