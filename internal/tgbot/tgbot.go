package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/data/session"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/gold_ledger_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/gold_ledger_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/gold_ledger_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// получение сессии и выбор метода контроллера на основе шага пользователя
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)
		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("что-то пошло не так...")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingLotInput:
			return b.ctrl.ProcessAddLot(c)
		case model.ExpectingLotEditInput:
			return b.ctrl.ProcessEditLot(c)
		case model.ExpectingSaleInput:
			return b.ctrl.ProcessSellLot(c)
		case model.ExpectingSaleEditInput:
			return b.ctrl.ProcessEditSale(c)
		case model.ExpectingBatchSaleInput:
			return b.ctrl.ProcessBatchSell(c)
		default:
			return c.Send("сначала введите одну из команд: /portfolio, /add, /export")
		}
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		// сразу убираем спиннер с кнопки
		if err := c.Respond(); err != nil {
			slog.Debug("callback respond error", slog.String("err", err.Error()))
		}

		data := strings.TrimPrefix(c.Callback().Data, "\f")

		switch data {
		case tgCallback.AddLot:
			return b.ctrl.InitAddLot(c)
		case tgCallback.BatchSell:
			return b.ctrl.InitBatchSell(c)
		case tgCallback.ClearSelection:
			return b.ctrl.ClearSelection(c)
		case tgCallback.Export:
			return b.ctrl.Export(c)
		case tgCallback.ProfitHistory:
			return b.ctrl.ProfitHistory(c)
		case tgCallback.BackToPortfolio:
			return b.ctrl.BackToPortfolio(c)
		case tgCallback.CancelInput:
			return b.ctrl.CancelInput(c)
		}

		switch {
		case strings.HasPrefix(data, tgCallback.PagePrefix):
			return b.ctrl.ChangePage(c)
		case strings.HasPrefix(data, tgCallback.ToggleSelectPrefix):
			return b.ctrl.ToggleSelect(c)
		case strings.HasPrefix(data, tgCallback.SellLotPrefix):
			return b.ctrl.InitSellLot(c)
		case strings.HasPrefix(data, tgCallback.EditLotPrefix):
			return b.ctrl.InitEditLot(c)
		case strings.HasPrefix(data, tgCallback.ConfirmDeleteLotPrefix):
			return b.ctrl.ConfirmDeleteLot(c)
		case strings.HasPrefix(data, tgCallback.DeleteLotPrefix):
			return b.ctrl.DeleteLot(c)
		case strings.HasPrefix(data, tgCallback.EditSalePrefix):
			return b.ctrl.InitEditSale(c)
		case strings.HasPrefix(data, tgCallback.ConfirmDeleteSalePrefix):
			return b.ctrl.ConfirmDeleteSale(c)
		case strings.HasPrefix(data, tgCallback.DeleteSalePrefix):
			return b.ctrl.DeleteSale(c)
		case strings.HasPrefix(data, tgCallback.ConfirmDeleteBatchAndLotsPrefix):
			return b.ctrl.ConfirmDeleteBatchAndLots(c)
		case strings.HasPrefix(data, tgCallback.ConfirmDeleteBatchPrefix):
			return b.ctrl.ConfirmDeleteBatch(c)
		case strings.HasPrefix(data, tgCallback.DeleteBatchPrefix):
			return b.ctrl.DeleteBatch(c)
		case strings.HasPrefix(data, tgCallback.LotPrefix):
			return b.ctrl.OpenLot(c)
		case strings.HasPrefix(data, tgCallback.BatchPrefix):
			return b.ctrl.OpenBatch(c)
		}

		slog.Warn("unknown callback", slog.String("data", data))
		return nil
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/portfolio", b.ctrl.ShowPortfolio)
	b.bot.Handle("/add", b.ctrl.InitAddLot)
	b.bot.Handle("/profit", b.ctrl.ProfitHistory)
	b.bot.Handle("/export", b.ctrl.Export)
	b.bot.Handle("/help", b.ctrl.Help)
}
