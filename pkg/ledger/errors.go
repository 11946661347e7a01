package ledger

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyFinalized    = errors.New("transaction is already finalized")
	ErrNotRefundable       = errors.New("only completed payments can be refunded")
	ErrAlreadyRefunded     = errors.New("payment is already refunded")
	ErrMetadataKeyExists   = errors.New("metadata key already set")
	ErrExternalRefTaken    = errors.New("external reference belongs to another transaction")
	ErrInvalidOutcome      = errors.New("outcome must be completed or failed")
)
