package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/data/session"
	"github.com/KotFed0t/gold_ledger_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/gold_ledger_bot/internal/service"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "что-то пошло не так..."
	notFoundMsg    = "запись не найдена, обновите портфель: /portfolio"

	greetingMsg = "Привет! Я веду учет золота: покупки, продажи и прибыль.\n" +
		"Добавляйте лоты, продавайте их по одному или пакетом и выгружайте отчет в Excel.\n" +
		"Справка: /help"

	helpMsg = "Команды:\n" +
		"/portfolio — портфель\n" +
		"/add — добавить покупку\n" +
		"/profit — прибыль по продажам\n" +
		"/export — выгрузить отчет в Excel\n\n" +
		"Форматы ввода:\n" +
		"покупка: <вес_г> <цена_за_грамм> [дата] [заметка]\n" +
		"продажа: <вес_г|всё> <цена_за_грамм> [комиссия] [дата] [заметка]\n" +
		"пакетная продажа: <цена_за_грамм> [общая_комиссия] [дата] [заметка]\n" +
		"Дата в формате ДД.ММ.ГГГГ, по умолчанию сегодня."

	badLotInputMsg   = "не понял сообщение 🤔 формат: <вес_г> <цена_за_грамм> [дата] [заметка]"
	badSaleInputMsg  = "не понял сообщение 🤔 формат: <вес_г|всё> <цена_за_грамм> [комиссия] [дата] [заметка]"
	badBatchInputMsg = "не понял сообщение 🤔 формат: <цена_за_грамм> [общая_комиссия] [дата] [заметка]"

	overdraftMsg       = "нельзя продать больше, чем осталось в лоте"
	resizeOverdraftMsg = "нельзя сделать вес меньше уже проданного объема"
	saleInBatchMsg     = "эта продажа входит в пакет, правьте или удаляйте весь пакет"
	lotInBatchMsg      = "один из лотов уже участвует в другом пакете"
	nothingToSellMsg   = "в выбранных лотах нет остатка для продажи"
	emptySelectionMsg  = "сначала отметьте лоты для пакетной продажи"
	emptyLedgerMsg     = "в портфеле пока пусто, экспортировать нечего"
)

type GoldLedgerService interface {
	GetPortfolioPage(ctx context.Context, chatID int64, page int, selectedLotIDs []string) (model.PortfolioPage, error)
	GetLotDetails(ctx context.Context, chatID int64, lotID string) (model.LotSummary, error)
	GetBatchDetails(ctx context.Context, chatID int64, batchID string) (model.BatchView, error)
	GetProfitHistory(ctx context.Context, chatID int64) ([]model.ProfitPoint, error)
	AddLot(ctx context.Context, chatID int64, grams, pricePerGram decimal.Decimal, boughtAt time.Time, notes *string) (model.Lot, error)
	EditLot(ctx context.Context, chatID int64, lotID string, grams, pricePerGram decimal.Decimal, boughtAt time.Time, notes *string) (model.Lot, error)
	DeleteLot(ctx context.Context, chatID int64, lotID string) error
	AddSale(ctx context.Context, chatID int64, lotID string, grams *decimal.Decimal, pricePerGram, fee decimal.Decimal, soldAt time.Time, notes *string) (model.Sale, error)
	EditSale(ctx context.Context, chatID int64, lotID, saleID string, grams *decimal.Decimal, pricePerGram, fee decimal.Decimal, soldAt time.Time, notes *string) (model.Sale, error)
	DeleteSale(ctx context.Context, chatID int64, lotID, saleID string) error
	CreateBatchSale(ctx context.Context, chatID int64, lotIDs []string, pricePerGram, totalFee decimal.Decimal, soldAt time.Time, notes *string) (model.BatchView, error)
	DeleteBatch(ctx context.Context, chatID int64, batchID string) error
	DeleteBatchWithLots(ctx context.Context, chatID int64, batchID string) error
	ExportLedger(ctx context.Context, chatID int64) (fileBytes []byte, filename string, downloadLink string, err error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	goldLedgerService GoldLedgerService
	session           Session
}

func NewController(goldLedgerService GoldLedgerService, session Session) *Controller {
	return &Controller{
		goldLedgerService: goldLedgerService,
		session:           session,
	}
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) saveSession(ctx context.Context, c tele.Context, chatSession model.Session) {
	err := ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}

// callbackPayload возвращает callback data без служебного префикса телебота.
func callbackPayload(c tele.Context) string {
	if c.Callback() == nil {
		return ""
	}
	return strings.TrimPrefix(c.Callback().Data, "\f")
}

// respond редактирует сообщение для callback-кнопок и шлет новое для команд.
func respond(c tele.Context, edit bool, what any, opts ...any) error {
	if edit {
		return c.Edit(what, opts...)
	}
	return c.Send(what, opts...)
}

func (ctrl *Controller) renderPortfolio(ctx context.Context, c tele.Context, chatSession model.Session, edit bool) error {
	page, err := ctrl.goldLedgerService.GetPortfolioPage(ctx, c.Chat().ID, chatSession.Page, chatSession.SelectedLotIDs)
	if err != nil {
		return respond(c, edit, internalErrMsg)
	}

	// сервис мог откатить несуществующую страницу на последнюю
	if page.CurPage != chatSession.Page {
		chatSession.Page = page.CurPage
		ctrl.saveSession(ctx, c, chatSession)
	}

	text, markup := telebotConverter.PortfolioResponse(page)
	return respond(c, edit, text, markup)
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send(greetingMsg); err != nil {
		return err
	}

	return ctrl.renderPortfolio(ctx, c, chatSession, false)
}

func (ctrl *Controller) Help(c tele.Context) error {
	return c.Send(helpMsg)
}

// ShowPortfolio обрабатывает команду /portfolio.
func (ctrl *Controller) ShowPortfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.Page = 0
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, false)
}

// BackToPortfolio возвращает к портфелю по кнопке, страница сохраняется.
func (ctrl *Controller) BackToPortfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) ChangePage(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	page, err := strconv.Atoi(strings.TrimPrefix(callbackPayload(c), tgCallback.PagePrefix))
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.Page = page
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) OpenLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.LotPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.LotID = lotID
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.LotDetailsResponse(lot)
	return c.Edit(text, markup)
}

func (ctrl *Controller) OpenBatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	batchID := strings.TrimPrefix(callbackPayload(c), tgCallback.BatchPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	batch, err := ctrl.goldLedgerService.GetBatchDetails(ctx, c.Chat().ID, batchID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.BatchDetailsResponse(batch)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ToggleSelect(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.ToggleSelectPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.ToggleSelected(lotID)
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) ClearSelection(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.ClearSelection()
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

// InitAddLot переводит чат в режим ввода покупки (команда /add или кнопка).
func (ctrl *Controller) InitAddLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingLotInput
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.AddLotPrompt()
	return respond(c, c.Callback() != nil, text, markup)
}

func (ctrl *Controller) ProcessAddLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	in, err := parseLotInput(c.Message().Text, time.Now())
	if err != nil {
		return c.Send(badLotInputMsg, telebotConverter.CancelMarkup())
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if _, err := ctrl.goldLedgerService.AddLot(ctx, c.Chat().ID, in.grams, in.pricePerGram, in.boughtAt, in.notes); err != nil {
		slog.Error("got error from goldLedgerService.AddLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.Page = 0 // показываем начало портфеля
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send("✅ Лот добавлен"); err != nil {
		return err
	}

	return ctrl.renderPortfolio(ctx, c, chatSession, false)
}

func (ctrl *Controller) InitEditLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.EditLotPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingLotEditInput
	chatSession.LotID = lotID
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.EditLotPrompt(lot)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ProcessEditLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	in, err := parseLotInput(c.Message().Text, time.Now())
	if err != nil {
		return c.Send(badLotInputMsg, telebotConverter.CancelMarkup())
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	_, err = ctrl.goldLedgerService.EditLot(ctx, c.Chat().ID, chatSession.LotID, in.grams, in.pricePerGram, in.boughtAt, in.notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOverdraft):
			// оставляем режим ввода, пусть пользователь поправит вес
			return c.Send(resizeOverdraftMsg, telebotConverter.CancelMarkup())
		case errors.Is(err, service.ErrNotFound):
			chatSession.State = model.DefaultState
			ctrl.saveSession(ctx, c, chatSession)
			return c.Send(notFoundMsg)
		}
		slog.Error("got error from goldLedgerService.EditLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send("✅ Лот обновлен"); err != nil {
		return err
	}

	return ctrl.sendLotDetails(ctx, c, chatSession.LotID)
}

func (ctrl *Controller) sendLotDetails(ctx context.Context, c tele.Context, lotID string) error {
	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, lotID)
	if err != nil {
		chatSession, sessErr := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
		if sessErr != nil {
			return c.Send(internalErrMsg)
		}
		return ctrl.renderPortfolio(ctx, c, chatSession, false)
	}

	text, markup := telebotConverter.LotDetailsResponse(lot)
	return c.Send(text, markup)
}

func (ctrl *Controller) InitSellLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.SellLotPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingSaleInput
	chatSession.LotID = lotID
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.SellLotPrompt(lot)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ProcessSellLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	in, err := parseSaleInput(c.Message().Text, time.Now())
	if err != nil {
		return c.Send(badSaleInputMsg, telebotConverter.CancelMarkup())
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	_, err = ctrl.goldLedgerService.AddSale(ctx, c.Chat().ID, chatSession.LotID, in.grams, in.pricePerGram, in.fee, in.soldAt, in.notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOverdraft):
			return c.Send(overdraftMsg, telebotConverter.CancelMarkup())
		case errors.Is(err, service.ErrNothingToSell):
			chatSession.State = model.DefaultState
			ctrl.saveSession(ctx, c, chatSession)
			return c.Send(nothingToSellMsg)
		case errors.Is(err, service.ErrNotFound):
			chatSession.State = model.DefaultState
			ctrl.saveSession(ctx, c, chatSession)
			return c.Send(notFoundMsg)
		}
		slog.Error("got error from goldLedgerService.AddSale", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send("✅ Продажа записана"); err != nil {
		return err
	}

	return ctrl.sendLotDetails(ctx, c, chatSession.LotID)
}

func (ctrl *Controller) InitEditSale(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	saleID := strings.TrimPrefix(callbackPayload(c), tgCallback.EditSalePrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, chatSession.LotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	sale, ok := findSale(lot, saleID)
	if !ok {
		return ctrl.renderPortfolio(ctx, c, chatSession, true)
	}

	chatSession.State = model.ExpectingSaleEditInput
	chatSession.SaleID = saleID
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.EditSalePrompt(sale)
	return c.Edit(text, markup)
}

func findSale(lot model.LotSummary, saleID string) (model.Sale, bool) {
	for _, sale := range lot.Sales {
		if sale.ID == saleID {
			return sale, true
		}
	}
	return model.Sale{}, false
}

func (ctrl *Controller) ProcessEditSale(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	in, err := parseSaleInput(c.Message().Text, time.Now())
	if err != nil {
		return c.Send(badSaleInputMsg, telebotConverter.CancelMarkup())
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	_, err = ctrl.goldLedgerService.EditSale(ctx, c.Chat().ID, chatSession.LotID, chatSession.SaleID, in.grams, in.pricePerGram, in.fee, in.soldAt, in.notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOverdraft):
			return c.Send(overdraftMsg, telebotConverter.CancelMarkup())
		case errors.Is(err, service.ErrSaleInBatch):
			chatSession.State = model.DefaultState
			ctrl.saveSession(ctx, c, chatSession)
			return c.Send(saleInBatchMsg)
		case errors.Is(err, service.ErrNotFound):
			chatSession.State = model.DefaultState
			ctrl.saveSession(ctx, c, chatSession)
			return c.Send(notFoundMsg)
		}
		slog.Error("got error from goldLedgerService.EditSale", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send("✅ Продажа обновлена"); err != nil {
		return err
	}

	return ctrl.sendLotDetails(ctx, c, chatSession.LotID)
}

func (ctrl *Controller) DeleteLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.DeleteLotPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, lotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.DeleteLotConfirmation(lot)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ConfirmDeleteLot(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	lotID := strings.TrimPrefix(callbackPayload(c), tgCallback.ConfirmDeleteLotPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err := ctrl.goldLedgerService.DeleteLot(ctx, c.Chat().ID, lotID); err != nil && !errors.Is(err, service.ErrNotFound) {
		slog.Error("got error from goldLedgerService.DeleteLot", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if chatSession.IsSelected(lotID) {
		chatSession.ToggleSelected(lotID)
	}
	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) DeleteSale(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	saleID := strings.TrimPrefix(callbackPayload(c), tgCallback.DeleteSalePrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, chatSession.LotID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	sale, ok := findSale(lot, saleID)
	if !ok {
		return ctrl.renderPortfolio(ctx, c, chatSession, true)
	}

	text, markup := telebotConverter.DeleteSaleConfirmation(lot, sale)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ConfirmDeleteSale(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	saleID := strings.TrimPrefix(callbackPayload(c), tgCallback.ConfirmDeleteSalePrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	err = ctrl.goldLedgerService.DeleteSale(ctx, c.Chat().ID, chatSession.LotID, saleID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleInBatch):
			if sendErr := c.Send(saleInBatchMsg); sendErr != nil {
				return sendErr
			}
		case errors.Is(err, service.ErrNotFound):
		default:
			slog.Error("got error from goldLedgerService.DeleteSale", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(internalErrMsg)
		}
	}

	lot, err := ctrl.goldLedgerService.GetLotDetails(ctx, c.Chat().ID, chatSession.LotID)
	if err != nil {
		return ctrl.renderPortfolio(ctx, c, chatSession, true)
	}

	text, markup := telebotConverter.LotDetailsResponse(lot)
	return c.Edit(text, markup)
}

func (ctrl *Controller) DeleteBatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	batchID := strings.TrimPrefix(callbackPayload(c), tgCallback.DeleteBatchPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	batch, err := ctrl.goldLedgerService.GetBatchDetails(ctx, c.Chat().ID, batchID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return ctrl.renderPortfolio(ctx, c, chatSession, true)
		}
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.DeleteBatchConfirmation(batch)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ConfirmDeleteBatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	batchID := strings.TrimPrefix(callbackPayload(c), tgCallback.ConfirmDeleteBatchPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err := ctrl.goldLedgerService.DeleteBatch(ctx, c.Chat().ID, batchID); err != nil && !errors.Is(err, service.ErrNotFound) {
		slog.Error("got error from goldLedgerService.DeleteBatch", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) ConfirmDeleteBatchAndLots(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	batchID := strings.TrimPrefix(callbackPayload(c), tgCallback.ConfirmDeleteBatchAndLotsPrefix)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err := ctrl.goldLedgerService.DeleteBatchWithLots(ctx, c.Chat().ID, batchID); err != nil && !errors.Is(err, service.ErrNotFound) {
		slog.Error("got error from goldLedgerService.DeleteBatchWithLots", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}

func (ctrl *Controller) InitBatchSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	page, err := ctrl.goldLedgerService.GetPortfolioPage(ctx, c.Chat().ID, chatSession.Page, chatSession.SelectedLotIDs)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	// выбор мог устареть, пересчитываем по реестру
	if page.SelectedCount == 0 {
		chatSession.ClearSelection()
		ctrl.saveSession(ctx, c, chatSession)
		if err := c.Send(emptySelectionMsg); err != nil {
			return err
		}
		return ctrl.renderPortfolio(ctx, c, chatSession, true)
	}

	chatSession.State = model.ExpectingBatchSaleInput
	ctrl.saveSession(ctx, c, chatSession)

	text, markup := telebotConverter.BatchSellPrompt(page.SelectedCount, page.SelectedGrams)
	return c.Edit(text, markup)
}

func (ctrl *Controller) ProcessBatchSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	in, err := parseBatchSaleInput(c.Message().Text, time.Now())
	if err != nil {
		return c.Send(badBatchInputMsg, telebotConverter.CancelMarkup())
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	batch, err := ctrl.goldLedgerService.CreateBatchSale(ctx, c.Chat().ID, chatSession.SelectedLotIDs, in.pricePerGram, in.totalFee, in.soldAt, in.notes)
	if err != nil {
		chatSession.State = model.DefaultState
		ctrl.saveSession(ctx, c, chatSession)

		switch {
		case errors.Is(err, service.ErrEmptySelection):
			return c.Send(emptySelectionMsg)
		case errors.Is(err, service.ErrNothingToSell):
			return c.Send(nothingToSellMsg)
		case errors.Is(err, service.ErrLotInOtherBatch):
			return c.Send(lotInBatchMsg)
		}
		slog.Error("got error from goldLedgerService.CreateBatchSale", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.ClearSelection()
	chatSession.Page = 0
	ctrl.saveSession(ctx, c, chatSession)

	if err := c.Send("✅ Пакетная продажа записана"); err != nil {
		return err
	}

	text, markup := telebotConverter.BatchDetailsResponse(batch)
	return c.Send(text, markup)
}

// ProfitHistory показывает прибыль по продажам прямо в чате.
func (ctrl *Controller) ProfitHistory(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	points, err := ctrl.goldLedgerService.GetProfitHistory(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from goldLedgerService.GetProfitHistory", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return respond(c, c.Callback() != nil, internalErrMsg)
	}

	text, markup := telebotConverter.ProfitHistoryResponse(points)
	return respond(c, c.Callback() != nil, text, markup)
}

// Export выгружает отчет: файлом в чат или ссылкой, если файл больше лимита телеграма.
func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	fileBytes, filename, downloadLink, err := ctrl.goldLedgerService.ExportLedger(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyLedger) {
			return c.Send(emptyLedgerMsg)
		}
		slog.Error("got error from goldLedgerService.ExportLedger", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if downloadLink != "" {
		return c.Send(fmt.Sprintf("Файл получился большим, скачайте по ссылке:\n%s", downloadLink))
	}

	doc := &tele.Document{File: tele.FromReader(bytes.NewReader(fileBytes)), FileName: filename}
	return c.Send(doc)
}

// CancelInput сбрасывает режим ввода и возвращает к портфелю.
func (ctrl *Controller) CancelInput(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	ctrl.saveSession(ctx, c, chatSession)

	return ctrl.renderPortfolio(ctx, c, chatSession, true)
}
