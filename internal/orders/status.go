package orders

type Status string

const (
	StatusPending    Status = "PENDING"    // order created, payment intent opened, funds not locked yet
	StatusProcessing Status = "PROCESSING" // funds locked in escrow
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCompleted  Status = "COMPLETED" // funds released to seller
	StatusCanceled   Status = "CANCELED"
	StatusRefunded   Status = "REFUNDED"
)

// Monoton maju; CANCELED/REFUNDED menyerap dari semua state non-terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCanceled: true, StatusRefunded: true},
	StatusProcessing: {StatusShipped: true, StatusCanceled: true, StatusRefunded: true},
	StatusShipped:    {StatusDelivered: true, StatusRefunded: true},
	StatusDelivered:  {StatusCompleted: true, StatusRefunded: true},
	StatusCompleted:  {},
	StatusCanceled:   {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusRefunded
}

// StockHeld reports whether the reservation is still held in this state.
// Dari SHIPPED ke atas barang sudah keluar gudang, stok tidak dikembalikan.
func (s Status) StockHeld() bool {
	return s == StatusPending || s == StatusProcessing
}
