package goldLedgerService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/data/cache"
	"github.com/KotFed0t/gold_ledger_bot/data/repository"
	"github.com/KotFed0t/gold_ledger_bot/internal/accounting"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/service"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerStore interface {
	Lots(chatID int64) (lots []model.Lot, ok bool)
	SetLots(chatID int64, lots []model.Lot)
	Lot(chatID int64, lotID string) (model.Lot, error)
	UpsertLot(chatID int64, lot model.Lot)
	DeleteLot(chatID int64, lotID string) error
	UpsertSale(chatID int64, lotID string, sale model.Sale) error
	DeleteSale(chatID int64, lotID, saleID string) error
	DeleteSalesByBatch(chatID int64, batchID string) error
}

type Repository interface {
	SaveLedger(ctx context.Context, chatID int64, lots []model.Lot) error
	LoadLedger(ctx context.Context, chatID int64) ([]model.Lot, error)
	GetChatIDs(ctx context.Context) ([]int64, error)
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type Cache interface {
	GetGoldPrice(ctx context.Context) (model.GoldPrice, error)
	SetGoldPrice(ctx context.Context, price model.GoldPrice) error
}

type GoldPriceApi interface {
	GetGoldPrice(ctx context.Context) (model.GoldPrice, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.LedgerReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type GoldLedgerService struct {
	cfg          *config.Config
	store        LedgerStore
	repo         Repository
	cache        Cache
	goldPriceApi GoldPriceApi
	reportGen    ReportGenerator
	cloudStorage CloudStorage
	feeSplit     accounting.FeeSplitPolicy
}

func New(
	cfg *config.Config,
	store LedgerStore,
	repo Repository,
	cache Cache,
	goldPriceApi GoldPriceApi,
	reportGen ReportGenerator,
	cloudStorage CloudStorage,
) *GoldLedgerService {
	feeSplit, err := accounting.ParseFeeSplitPolicy(cfg.BatchFeeSplit)
	if err != nil {
		panic(err)
	}

	return &GoldLedgerService{
		cfg:          cfg,
		store:        store,
		repo:         repo,
		cache:        cache,
		goldPriceApi: goldPriceApi,
		reportGen:    reportGen,
		cloudStorage: cloudStorage,
		feeSplit:     feeSplit,
	}
}

// ensureLedger возвращает лоты чата, при первом обращении поднимая слепок из Postgres.
func (s *GoldLedgerService) ensureLedger(ctx context.Context, chatID int64) ([]model.Lot, error) {
	if lots, ok := s.store.Lots(chatID); ok {
		return lots, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.ensureLedger"

	lots, err := s.repo.LoadLedger(ctx, chatID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			lots = nil
		case errors.Is(err, repository.ErrMalformedLedger):
			// битый payload не должен блокировать чат - стартуем с пустого реестра
			slog.Error("ledger payload malformed, starting empty", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("err", err.Error()))
			lots = nil
		default:
			slog.Error("got error from repo.LoadLedger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}
	}

	s.store.SetLots(chatID, lots)

	return lots, nil
}

// persistLedger асинхронно обновляет слепок чата в Postgres после мутации.
func (s *GoldLedgerService) persistLedger(ctx context.Context, chatID int64) {
	lots, ok := s.store.Lots(chatID)
	if !ok {
		return
	}

	go s.repo.SaveLedger(context.WithoutCancel(ctx), chatID, lots)
}

func (s *GoldLedgerService) getGoldPrice(ctx context.Context) (model.GoldPrice, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.getGoldPrice"

	price, err := s.cache.GetGoldPrice(ctx)
	if err == nil {
		return price, nil
	}

	if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("can't get gold price from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	price, err = s.goldPriceApi.GetGoldPrice(ctx)
	if err != nil {
		slog.Error("got error from goldPriceApi.GetGoldPrice", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.GoldPrice{}, err
	}

	go s.cache.SetGoldPrice(context.WithoutCancel(ctx), price)

	return price, nil
}

func lotSummary(lot model.Lot, selected bool) model.LotSummary {
	fullySold := accounting.IsFullySold(lot)
	return model.LotSummary{
		Lot:        lot,
		Remaining:  accounting.Remaining(lot),
		Profit:     accounting.LotProfit(lot),
		FullySold:  fullySold,
		Selectable: !fullySold && accounting.LotBatchID(lot) == nil,
		Selected:   selected,
	}
}

func batchLots(lots []model.Lot, batchID string) []model.Lot {
	var members []model.Lot
	for _, lot := range lots {
		if id := accounting.LotBatchID(lot); id != nil && *id == batchID {
			members = append(members, lot)
		}
	}
	return members
}

// mapAccountingErr переводит ошибки расчетного слоя в ошибки сервиса.
func mapAccountingErr(err error) error {
	switch {
	case errors.Is(err, accounting.ErrOverdraft):
		return service.ErrOverdraft
	case errors.Is(err, accounting.ErrNothingToSell):
		return service.ErrNothingToSell
	case errors.Is(err, accounting.ErrLotInOtherBatch):
		return service.ErrLotInOtherBatch
	}
	return err
}

func (s *GoldLedgerService) GetPortfolioPage(ctx context.Context, chatID int64, page int, selectedLotIDs []string) (portfolioPage model.PortfolioPage, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.GetPortfolioPage"

	slog.Debug("GetPortfolioPage start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.Int("page", page))
	defer func() {
		slog.Debug("GetPortfolioPage finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.Int("page", page))
	}()

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return model.PortfolioPage{}, err
	}

	items := accounting.BuildItems(lots)

	// после удалений страница могла исчезнуть - откатываемся на последнюю
	limit := s.cfg.ItemsPerPage
	lastPage := 0
	if len(items) > 0 {
		lastPage = (len(items) - 1) / limit
	}
	if page > lastPage {
		page = lastPage
	}
	if page < 0 {
		page = 0
	}

	offset := page * limit
	end := min(offset+limit, len(items))

	selected := make(map[string]struct{}, len(selectedLotIDs))
	for _, lotID := range selectedLotIDs {
		selected[lotID] = struct{}{}
	}

	pageItems := make([]model.PortfolioItem, 0, end-offset)
	for _, item := range items[offset:end] {
		if item.Batch != nil {
			pageItems = append(pageItems, model.PortfolioItem{Batch: item.Batch})
			continue
		}
		_, isSelected := selected[item.Lot.ID]
		summary := lotSummary(*item.Lot, isSelected)
		pageItems = append(pageItems, model.PortfolioItem{Lot: &summary})
	}

	// выбранные лоты считаем по всему реестру, а не только по видимой странице
	selectedCount := 0
	var selectedGrams decimal.Decimal
	for _, lot := range lots {
		if _, ok := selected[lot.ID]; !ok {
			continue
		}
		if accounting.IsFullySold(lot) || accounting.LotBatchID(lot) != nil {
			continue
		}
		selectedCount++
		selectedGrams = selectedGrams.Add(accounting.Remaining(lot))
	}

	portfolioPage = model.PortfolioPage{
		PortfolioStats: accounting.Stats(lots),
		Items:          pageItems,
		CurPage:        page,
		HasNextPage:    end < len(items),
		SelectedCount:  selectedCount,
		SelectedGrams:  selectedGrams,
	}

	// без котировки портфель все равно показываем
	if price, priceErr := s.getGoldPrice(ctx); priceErr == nil {
		activeValue := portfolioPage.ActiveGrams.Mul(price.PricePerGram).Round(2)
		portfolioPage.GoldPrice = &price
		portfolioPage.ActiveValue = &activeValue
	}

	return portfolioPage, nil
}

func (s *GoldLedgerService) GetLotDetails(ctx context.Context, chatID int64, lotID string) (model.LotSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.GetLotDetails"

	slog.Debug("GetLotDetails start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	defer func() {
		slog.Debug("GetLotDetails finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return model.LotSummary{}, err
	}

	lot, err := s.store.Lot(chatID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.LotSummary{}, service.ErrNotFound
		}
		slog.Error("got error from store.Lot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LotSummary{}, err
	}

	return lotSummary(lot, false), nil
}

func (s *GoldLedgerService) GetBatchDetails(ctx context.Context, chatID int64, batchID string) (model.BatchView, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.GetBatchDetails"

	slog.Debug("GetBatchDetails start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	defer func() {
		slog.Debug("GetBatchDetails finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	}()

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return model.BatchView{}, err
	}

	members := batchLots(lots, batchID)
	if len(members) == 0 {
		return model.BatchView{}, service.ErrNotFound
	}

	return accounting.NewBatchView(batchID, members), nil
}

func (s *GoldLedgerService) AddLot(ctx context.Context, chatID int64, grams, pricePerGram decimal.Decimal, boughtAt time.Time, notes *string) (model.Lot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.AddLot"

	slog.Debug("AddLot start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("grams", grams.String()))
	defer func() {
		slog.Debug("AddLot finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return model.Lot{}, err
	}

	lot := model.Lot{
		ID:           uuid.NewString(),
		Grams:        grams,
		PricePerGram: pricePerGram,
		BoughtAt:     boughtAt,
		Notes:        notes,
	}

	s.store.UpsertLot(chatID, lot)
	s.persistLedger(ctx, chatID)

	return lot, nil
}

func (s *GoldLedgerService) EditLot(ctx context.Context, chatID int64, lotID string, grams, pricePerGram decimal.Decimal, boughtAt time.Time, notes *string) (model.Lot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.EditLot"

	slog.Debug("EditLot start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	defer func() {
		slog.Debug("EditLot finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return model.Lot{}, err
	}

	lot, err := s.store.Lot(chatID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Lot{}, service.ErrNotFound
		}
		slog.Error("got error from store.Lot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Lot{}, err
	}

	// вес нельзя уменьшить ниже уже проданного объема
	if err := accounting.ValidateLotResize(lot, grams); err != nil {
		if errors.Is(err, accounting.ErrOverdraft) {
			return model.Lot{}, service.ErrOverdraft
		}
		return model.Lot{}, err
	}

	lot.Grams = grams
	lot.PricePerGram = pricePerGram
	lot.BoughtAt = boughtAt
	lot.Notes = notes

	s.store.UpsertLot(chatID, lot)
	s.persistLedger(ctx, chatID)

	return lot, nil
}

func (s *GoldLedgerService) DeleteLot(ctx context.Context, chatID int64, lotID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.DeleteLot"

	slog.Debug("DeleteLot start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	defer func() {
		slog.Debug("DeleteLot finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return err
	}

	if err := s.store.DeleteLot(chatID, lotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from store.DeleteLot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.persistLedger(ctx, chatID)

	return nil
}

// AddSale добавляет продажу по лоту. grams == nil означает "продать весь остаток".
func (s *GoldLedgerService) AddSale(ctx context.Context, chatID int64, lotID string, grams *decimal.Decimal, pricePerGram, fee decimal.Decimal, soldAt time.Time, notes *string) (model.Sale, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.AddSale"

	slog.Debug("AddSale start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	defer func() {
		slog.Debug("AddSale finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("lotID", lotID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return model.Sale{}, err
	}

	lot, err := s.store.Lot(chatID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Sale{}, service.ErrNotFound
		}
		slog.Error("got error from store.Lot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Sale{}, err
	}

	saleGrams := accounting.Remaining(lot)
	if grams != nil {
		saleGrams = *grams
	}

	if err := accounting.ValidateSale(lot, saleGrams, ""); err != nil {
		return model.Sale{}, mapAccountingErr(err)
	}

	sale := model.Sale{
		ID:           uuid.NewString(),
		LotID:        lotID,
		Grams:        saleGrams,
		PricePerGram: pricePerGram,
		Fee:          fee,
		SoldAt:       soldAt,
		Notes:        notes,
	}

	if err := s.store.UpsertSale(chatID, lotID, sale); err != nil {
		slog.Error("got error from store.UpsertSale", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Sale{}, err
	}

	s.persistLedger(ctx, chatID)

	return sale, nil
}

// EditSale заменяет поля продажи целиком. grams == nil означает "продать весь остаток"
// с учетом объема самой редактируемой продажи.
func (s *GoldLedgerService) EditSale(ctx context.Context, chatID int64, lotID, saleID string, grams *decimal.Decimal, pricePerGram, fee decimal.Decimal, soldAt time.Time, notes *string) (model.Sale, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.EditSale"

	slog.Debug("EditSale start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("saleID", saleID))
	defer func() {
		slog.Debug("EditSale finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("saleID", saleID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return model.Sale{}, err
	}

	lot, err := s.store.Lot(chatID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Sale{}, service.ErrNotFound
		}
		slog.Error("got error from store.Lot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Sale{}, err
	}

	var cur *model.Sale
	for i := range lot.Sales {
		if lot.Sales[i].ID == saleID {
			cur = &lot.Sales[i]
			break
		}
	}
	if cur == nil {
		return model.Sale{}, service.ErrNotFound
	}
	if cur.BatchID != nil {
		return model.Sale{}, service.ErrSaleInBatch
	}

	saleGrams := accounting.Remaining(lot).Add(cur.Grams)
	if grams != nil {
		saleGrams = *grams
	}

	if err := accounting.ValidateSale(lot, saleGrams, saleID); err != nil {
		return model.Sale{}, mapAccountingErr(err)
	}

	sale := model.Sale{
		ID:           saleID,
		LotID:        lotID,
		Grams:        saleGrams,
		PricePerGram: pricePerGram,
		Fee:          fee,
		SoldAt:       soldAt,
		Notes:        notes,
	}

	if err := s.store.UpsertSale(chatID, lotID, sale); err != nil {
		slog.Error("got error from store.UpsertSale", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Sale{}, err
	}

	s.persistLedger(ctx, chatID)

	return sale, nil
}

func (s *GoldLedgerService) DeleteSale(ctx context.Context, chatID int64, lotID, saleID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.DeleteSale"

	slog.Debug("DeleteSale start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("saleID", saleID))
	defer func() {
		slog.Debug("DeleteSale finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("saleID", saleID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return err
	}

	lot, err := s.store.Lot(chatID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from store.Lot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	// пакетные продажи удаляются только вместе со всем пакетом
	for _, sale := range lot.Sales {
		if sale.ID == saleID && sale.BatchID != nil {
			return service.ErrSaleInBatch
		}
	}

	if err := s.store.DeleteSale(chatID, lotID, saleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from store.DeleteSale", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.persistLedger(ctx, chatID)

	return nil
}

// CreateBatchSale продает остатки выбранных лотов одной операцией по общей цене.
func (s *GoldLedgerService) CreateBatchSale(ctx context.Context, chatID int64, lotIDs []string, pricePerGram, totalFee decimal.Decimal, soldAt time.Time, notes *string) (model.BatchView, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.CreateBatchSale"

	slog.Debug("CreateBatchSale start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.Int("lotCount", len(lotIDs)))
	defer func() {
		slog.Debug("CreateBatchSale finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	if len(lotIDs) == 0 {
		return model.BatchView{}, service.ErrEmptySelection
	}

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return model.BatchView{}, err
	}

	// отбираем выбранные лоты, устаревшие id пропускаем
	selected := make([]model.Lot, 0, len(lotIDs))
	for _, lotID := range lotIDs {
		for _, lot := range lots {
			if lot.ID == lotID {
				selected = append(selected, lot)
				break
			}
		}
	}
	if len(selected) == 0 {
		return model.BatchView{}, service.ErrEmptySelection
	}

	batchID := uuid.NewString()

	sales, err := accounting.PlanBatchSale(batchID, selected, pricePerGram, totalFee, soldAt, notes, s.feeSplit)
	if err != nil {
		return model.BatchView{}, mapAccountingErr(err)
	}

	for i := range sales {
		sales[i].ID = uuid.NewString()
		if err := s.store.UpsertSale(chatID, sales[i].LotID, sales[i]); err != nil {
			slog.Error("got error from store.UpsertSale", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.BatchView{}, err
		}
	}

	s.persistLedger(ctx, chatID)

	lots, _ = s.store.Lots(chatID)

	return accounting.NewBatchView(batchID, batchLots(lots, batchID)), nil
}

// DeleteBatch удаляет все продажи пакета, лоты при этом возвращаются в актив.
func (s *GoldLedgerService) DeleteBatch(ctx context.Context, chatID int64, batchID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.DeleteBatch"

	slog.Debug("DeleteBatch start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	defer func() {
		slog.Debug("DeleteBatch finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	}()

	if _, err := s.ensureLedger(ctx, chatID); err != nil {
		return err
	}

	if err := s.store.DeleteSalesByBatch(chatID, batchID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from store.DeleteSalesByBatch", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.persistLedger(ctx, chatID)

	return nil
}

// DeleteBatchWithLots удаляет пакет вместе с лотами-участниками и всеми их продажами.
func (s *GoldLedgerService) DeleteBatchWithLots(ctx context.Context, chatID int64, batchID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.DeleteBatchWithLots"

	slog.Debug("DeleteBatchWithLots start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	defer func() {
		slog.Debug("DeleteBatchWithLots finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("batchID", batchID))
	}()

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return err
	}

	members := batchLots(lots, batchID)
	if len(members) == 0 {
		return service.ErrNotFound
	}

	for _, lot := range members {
		if err := s.store.DeleteLot(chatID, lot.ID); err != nil {
			slog.Error("got error from store.DeleteLot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return err
		}
	}

	s.persistLedger(ctx, chatID)

	return nil
}

// buildLedgerReport раскладывает реестр в плоский отчет для xlsx.
func buildLedgerReport(chatID int64, lots []model.Lot) model.LedgerReport {
	report := model.LedgerReport{
		ChatID: chatID,
		Stats:  accounting.Stats(lots),
	}

	// порядок листа повторяет портфель, партии раскрываются в свои лоты
	for _, item := range accounting.BuildItems(lots) {
		if item.Batch != nil {
			report.Batches = append(report.Batches, *item.Batch)
			for _, lot := range item.Batch.Lots {
				report.Lots = append(report.Lots, lotSummary(lot, false))
			}
			continue
		}
		report.Lots = append(report.Lots, lotSummary(*item.Lot, false))
	}

	for soldAt, profit := range accounting.ProfitPoints(lots) {
		report.ProfitPoints = append(report.ProfitPoints, model.ProfitPoint{SoldAt: soldAt, Profit: profit})
	}

	return report
}

// GetProfitHistory возвращает прибыль по каждой продаже в хронологическом порядке.
func (s *GoldLedgerService) GetProfitHistory(ctx context.Context, chatID int64) ([]model.ProfitPoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.GetProfitHistory"

	slog.Debug("GetProfitHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetProfitHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var points []model.ProfitPoint
	for soldAt, profit := range accounting.ProfitPoints(lots) {
		points = append(points, model.ProfitPoint{SoldAt: soldAt, Profit: profit})
	}

	return points, nil
}

// ExportLedger собирает xlsx по реестру чата. Если файл больше лимита телеграма,
// он уезжает в облако и вместо байтов возвращается ссылка на скачивание.
func (s *GoldLedgerService) ExportLedger(ctx context.Context, chatID int64) (fileBytes []byte, filename string, downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.ExportLedger"

	slog.Debug("ExportLedger start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("ExportLedger finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	lots, err := s.ensureLedger(ctx, chatID)
	if err != nil {
		return nil, "", "", err
	}

	if len(lots) == 0 {
		return nil, "", "", service.ErrEmptyLedger
	}

	fileBytes, fileExtension, err := s.reportGen.Generate(ctx, buildLedgerReport(chatID, lots))
	if err != nil {
		slog.Error("got error from reportGen.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", "", err
	}

	filename = fmt.Sprintf("gold_ledger_%d_%s%s", chatID, time.Now().Format("02.01.2006"), fileExtension)

	if len(fileBytes) > s.cfg.Telegram.FileLimitInBytes {
		slog.Info("ledger file exceeds telegram limit, uploading to cloud", slog.String("rqID", rqID), slog.String("op", op), slog.Int("size", len(fileBytes)))

		downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
		if err != nil {
			slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, "", "", err
		}

		return nil, filename, downloadLink, nil
	}

	return fileBytes, filename, "", nil
}

// BackupLedgers выгружает xlsx по каждому чату в облако и подчищает устаревшие файлы.
func (s *GoldLedgerService) BackupLedgers(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.BackupLedgers"

	slog.Debug("BackupLedgers start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("BackupLedgers finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	type ledgerSnapshot struct {
		chatID int64
		lots   []model.Lot
	}

	// читаем все слепки в одной транзакции, чтобы бэкап был согласованным
	var snapshots []ledgerSnapshot
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		chatIDs, err := s.repo.GetChatIDs(ctx)
		if err != nil {
			return err
		}

		for _, chatID := range chatIDs {
			lots, err := s.repo.LoadLedger(ctx, chatID)
			if err != nil {
				if errors.Is(err, repository.ErrMalformedLedger) {
					slog.Error("skip malformed ledger in backup", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("err", err.Error()))
					continue
				}
				return err
			}
			if len(lots) == 0 {
				continue
			}
			snapshots = append(snapshots, ledgerSnapshot{chatID: chatID, lots: lots})
		}

		return nil
	})
	if err != nil {
		slog.Error("got error from repo.WithinTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	uploaded := 0
	for _, snap := range snapshots {
		fileBytes, fileExtension, err := s.reportGen.Generate(ctx, buildLedgerReport(snap.chatID, snap.lots))
		if err != nil {
			slog.Error("can't generate backup report", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", snap.chatID), slog.String("err", err.Error()))
			continue
		}

		filename := fmt.Sprintf("gold_ledger_%d_%s%s", snap.chatID, time.Now().Format("02.01.2006"), fileExtension)
		if _, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename); err != nil {
			slog.Error("can't upload backup file", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", snap.chatID), slog.String("err", err.Error()))
			continue
		}

		uploaded++
	}

	if err := s.cloudStorage.DeleteOldFiles(ctx); err != nil {
		slog.Error("got error from cloudStorage.DeleteOldFiles", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info("ledger backup done", slog.String("rqID", rqID), slog.String("op", op), slog.Int("uploaded", uploaded), slog.Int("total", len(snapshots)))

	return nil
}

// FillGoldPriceCache запрашивает котировку и кладет ее в кэш (для джобы по расписанию).
func (s *GoldLedgerService) FillGoldPriceCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoldLedgerService.FillGoldPriceCache"

	slog.Debug("FillGoldPriceCache start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("FillGoldPriceCache finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	price, err := s.goldPriceApi.GetGoldPrice(ctx)
	if err != nil {
		slog.Error("got error from goldPriceApi.GetGoldPrice", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := s.cache.SetGoldPrice(ctx, price); err != nil {
		slog.Error("got error from cache.SetGoldPrice", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}
