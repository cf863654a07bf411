package service

import "errors"

var (
	ErrNotFound        = errors.New("error not found")
	ErrOverdraft       = errors.New("error sale exceeds lot remainder")
	ErrNothingToSell   = errors.New("error nothing to sell")
	ErrSaleInBatch     = errors.New("error sale belongs to batch")
	ErrLotInOtherBatch = errors.New("error lot already in another batch")
	ErrEmptySelection  = errors.New("error empty lot selection")
	ErrEmptyLedger     = errors.New("error ledger is empty")
)
