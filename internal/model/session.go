package model

import "slices"

type state int

const (
	DefaultState state = iota
	ExpectingLotInput
	ExpectingLotEditInput
	ExpectingSaleInput
	ExpectingSaleEditInput
	ExpectingBatchSaleInput
)

type Session struct {
	State          state
	Page           int
	LotID          string
	SaleID         string
	SelectedLotIDs []string
}

func (s *Session) IsSelected(lotID string) bool {
	return slices.Contains(s.SelectedLotIDs, lotID)
}

// ToggleSelected flips selection of the lot and reports whether it is selected now.
func (s *Session) ToggleSelected(lotID string) bool {
	if i := slices.Index(s.SelectedLotIDs, lotID); i >= 0 {
		s.SelectedLotIDs = slices.Delete(s.SelectedLotIDs, i, i+1)
		return false
	}
	s.SelectedLotIDs = append(s.SelectedLotIDs, lotID)
	return true
}

func (s *Session) ClearSelection() {
	s.SelectedLotIDs = nil
}
