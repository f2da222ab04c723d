package types

type OrderSide string

type OrderStatus string

type TxStatus string

type Role string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

const (
	OrderStatusOpen      OrderStatus = "Open"
	OrderStatusFilled    OrderStatus = "Filled"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

const (
	TxStatusPending  TxStatus = "Pending"
	TxStatusApproved TxStatus = "Approved"
	TxStatusRejected TxStatus = "Rejected"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite returns the side that reduces exposure opened by s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

func (t TxStatus) Terminal() bool {
	return t == TxStatusApproved || t == TxStatusRejected
}
