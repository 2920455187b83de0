package domain

// TransactionType names the kind of movement an event describes.
type TransactionType string

const (
	TxCashDeposit               TransactionType = "CashDeposit"
	TxVerifiedCashDeposit       TransactionType = "VerifiedCashDeposit"
	TxVerifyCashDeposit         TransactionType = "VerifyCashDeposit"
	TxCashWithdrawal            TransactionType = "CashWithdrawal"
	TxIncomingPayment           TransactionType = "IncomingPayment"
	TxUnverifiedOutgoingPayment TransactionType = "UnverifiedOutgoingPayment"
	TxVerifiedOutgoingPayment   TransactionType = "VerifiedOutgoingPayment"
	TxRejectedOutgoingPayment   TransactionType = "RejectedOutgoingPayment"
	TxInterAccountTransfer      TransactionType = "InterAccountTransfer"
)

// TransactionTypes lists every recognized type.
var TransactionTypes = []TransactionType{
	TxCashDeposit,
	TxVerifiedCashDeposit,
	TxVerifyCashDeposit,
	TxCashWithdrawal,
	TxIncomingPayment,
	TxUnverifiedOutgoingPayment,
	TxVerifiedOutgoingPayment,
	TxRejectedOutgoingPayment,
	TxInterAccountTransfer,
}

// IsRecognized reports whether t is one of TransactionTypes.
func (t TransactionType) IsRecognized() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Predecessor returns the type of the pending transaction that t settles,
// and false for types that stand on their own.
func (t TransactionType) Predecessor() (TransactionType, bool) {
	switch t {
	case TxVerifyCashDeposit:
		return TxCashDeposit, true
	case TxVerifiedOutgoingPayment, TxRejectedOutgoingPayment:
		return TxUnverifiedOutgoingPayment, true
	}
	return "", false
}
