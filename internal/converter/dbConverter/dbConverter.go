package dbConverter

import (
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/dbModel"
)

func ConvertLot(dbLot dbModel.Lot) model.Lot {
	lot := model.Lot{
		ID:           dbLot.ID,
		Grams:        dbLot.Grams,
		PricePerGram: dbLot.PricePerGram,
		BoughtAt:     dbLot.BoughtAt,
		Notes:        dbLot.Notes,
	}
	if len(dbLot.Sales) > 0 {
		lot.Sales = make([]model.Sale, 0, len(dbLot.Sales))
		for _, dbSale := range dbLot.Sales {
			lot.Sales = append(lot.Sales, ConvertSale(dbSale))
		}
	}
	return lot
}

func ConvertSale(dbSale dbModel.Sale) model.Sale {
	return model.Sale{
		ID:           dbSale.ID,
		LotID:        dbSale.LotID,
		Grams:        dbSale.Grams,
		PricePerGram: dbSale.PricePerGram,
		Fee:          dbSale.Fee,
		SoldAt:       dbSale.SoldAt,
		Notes:        dbSale.Notes,
		BatchID:      dbSale.BatchID,
	}
}

func ConvertLots(dbLots []dbModel.Lot) []model.Lot {
	lots := make([]model.Lot, 0, len(dbLots))
	for _, dbLot := range dbLots {
		lots = append(lots, ConvertLot(dbLot))
	}
	return lots
}

func ConvertLotToDb(lot model.Lot) dbModel.Lot {
	dbLot := dbModel.Lot{
		ID:           lot.ID,
		Grams:        lot.Grams,
		PricePerGram: lot.PricePerGram,
		BoughtAt:     lot.BoughtAt,
		Notes:        lot.Notes,
	}
	if len(lot.Sales) > 0 {
		dbLot.Sales = make([]dbModel.Sale, 0, len(lot.Sales))
		for _, sale := range lot.Sales {
			dbLot.Sales = append(dbLot.Sales, ConvertSaleToDb(sale))
		}
	}
	return dbLot
}

func ConvertSaleToDb(sale model.Sale) dbModel.Sale {
	return dbModel.Sale{
		ID:           sale.ID,
		LotID:        sale.LotID,
		Grams:        sale.Grams,
		PricePerGram: sale.PricePerGram,
		Fee:          sale.Fee,
		SoldAt:       sale.SoldAt,
		Notes:        sale.Notes,
		BatchID:      sale.BatchID,
	}
}

func ConvertLotsToDb(lots []model.Lot) []dbModel.Lot {
	dbLots := make([]dbModel.Lot, 0, len(lots))
	for _, lot := range lots {
		dbLots = append(dbLots, ConvertLotToDb(lot))
	}
	return dbLots
}
