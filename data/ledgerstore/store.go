package ledgerstore

import (
	"slices"
	"sync"

	"github.com/KotFed0t/gold_ledger_bot/data/repository"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
)

// Store держит реестры всех чатов в памяти и служит источником истины на время
// работы процесса. Durable-слепок в Postgres обновляет сервис после каждой
// успешной мутации. Наружу всегда отдаются копии, бизнес-правил здесь нет.
type Store struct {
	mu      sync.RWMutex
	ledgers map[int64][]model.Lot
}

func NewStore() *Store {
	return &Store{ledgers: make(map[int64][]model.Lot)}
}

// строки и decimal неизменяемые, поэтому достаточно склонировать слайсы продаж
func copyLots(lots []model.Lot) []model.Lot {
	out := make([]model.Lot, len(lots))
	for i, lot := range lots {
		out[i] = lot
		out[i].Sales = slices.Clone(lot.Sales)
	}
	return out
}

// Lots возвращает копию реестра чата. ok == false значит чат ещё не загружен
// из базы (пустой загруженный реестр отдаёт ok == true).
func (s *Store) Lots(chatID int64) (lots []model.Lot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.ledgers[chatID]
	if !ok {
		return nil, false
	}
	return copyLots(stored), true
}

// SetLots заменяет реестр чата целиком (инициализация из базы).
func (s *Store) SetLots(chatID int64, lots []model.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[chatID] = copyLots(lots)
}

func (s *Store) Lot(chatID int64, lotID string) (model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lot := range s.ledgers[chatID] {
		if lot.ID == lotID {
			cp := lot
			cp.Sales = slices.Clone(lot.Sales)
			return cp, nil
		}
	}
	return model.Lot{}, repository.ErrNotFound
}

// UpsertLot заменяет лот на месте, сохраняя его позицию, либо добавляет новый
// в конец.
func (s *Store) UpsertLot(chatID int64, lot model.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := lot
	cp.Sales = slices.Clone(lot.Sales)
	lots := s.ledgers[chatID]
	for i := range lots {
		if lots[i].ID == lot.ID {
			lots[i] = cp
			return
		}
	}
	s.ledgers[chatID] = append(lots, cp)
}

// DeleteLot удаляет лот вместе со всеми его продажами.
func (s *Store) DeleteLot(chatID int64, lotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lots := s.ledgers[chatID]
	for i := range lots {
		if lots[i].ID == lotID {
			s.ledgers[chatID] = slices.Delete(lots, i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

// UpsertSale заменяет продажу на месте либо вставляет новую в начало списка
// (свежие продажи хранятся первыми).
func (s *Store) UpsertSale(chatID int64, lotID string, sale model.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lots := s.ledgers[chatID]
	for i := range lots {
		if lots[i].ID != lotID {
			continue
		}
		for j := range lots[i].Sales {
			if lots[i].Sales[j].ID == sale.ID {
				lots[i].Sales[j] = sale
				return nil
			}
		}
		lots[i].Sales = slices.Insert(lots[i].Sales, 0, sale)
		return nil
	}
	return repository.ErrNotFound
}

func (s *Store) DeleteSale(chatID int64, lotID, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lots := s.ledgers[chatID]
	for i := range lots {
		if lots[i].ID != lotID {
			continue
		}
		for j := range lots[i].Sales {
			if lots[i].Sales[j].ID == saleID {
				lots[i].Sales = slices.Delete(lots[i].Sales, j, j+1)
				return nil
			}
		}
		return repository.ErrNotFound
	}
	return repository.ErrNotFound
}

// DeleteSalesByBatch удаляет продажи пакета во всех лотах чата, сами лоты
// остаются.
func (s *Store) DeleteSalesByBatch(chatID int64, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	lots := s.ledgers[chatID]
	for i := range lots {
		before := len(lots[i].Sales)
		lots[i].Sales = slices.DeleteFunc(lots[i].Sales, func(sale model.Sale) bool {
			return sale.BatchID != nil && *sale.BatchID == batchID
		})
		removed += before - len(lots[i].Sales)
	}
	if removed == 0 {
		return repository.ErrNotFound
	}
	return nil
}
