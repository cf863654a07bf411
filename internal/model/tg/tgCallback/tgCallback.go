package tgCallback

// Callbacks buttons prefixes
const (
	AddLot          = "add_lot"
	BatchSell       = "batch_sell"
	ClearSelection  = "clear_selection"
	Export          = "export"
	ProfitHistory   = "profit_history"
	BackToPortfolio = "back_to_portfolio"
	CancelInput     = "cancel_input"

	LotPrefix                       = "lot:"
	BatchPrefix                     = "batch:"
	PagePrefix                      = "page:"
	ToggleSelectPrefix              = "toggle_select:"
	SellLotPrefix                   = "sell_lot:"
	EditLotPrefix                   = "edit_lot:"
	DeleteLotPrefix                 = "delete_lot:"
	ConfirmDeleteLotPrefix          = "confirm_delete_lot:"
	EditSalePrefix                  = "edit_sale:"
	DeleteSalePrefix                = "delete_sale:"
	ConfirmDeleteSalePrefix         = "confirm_delete_sale:"
	DeleteBatchPrefix               = "delete_batch:"
	ConfirmDeleteBatchPrefix        = "confirm_delete_batch:"
	ConfirmDeleteBatchAndLotsPrefix = "confirm_delete_batch_full:" // с uuid должно влезать в 64 байта callback data
)
