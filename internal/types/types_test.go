package types

import "testing"

func TestOrderSide(t *testing.T) {
	if !OrderSideBuy.Valid() || !OrderSideSell.Valid() {
		t.Fatal("canonical sides reported invalid")
	}
	if OrderSide("Hold").Valid() || OrderSide("buy").Valid() {
		t.Fatal("non-canonical side reported valid")
	}
	if OrderSideBuy.Opposite() != OrderSideSell || OrderSideSell.Opposite() != OrderSideBuy {
		t.Fatal("Opposite mismatch")
	}
}

func TestTxStatusTerminal(t *testing.T) {
	if TxStatusPending.Terminal() {
		t.Fatal("Pending reported terminal")
	}
	if !TxStatusApproved.Terminal() || !TxStatusRejected.Terminal() {
		t.Fatal("resolved status reported non-terminal")
	}
}
