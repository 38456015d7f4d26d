package usecase

import (
	"context"
	"fmt"
	"time"

	"optionpulse/internal/domain/models"
	drepo "optionpulse/internal/domain/repository"
)

// HistoryUseCase reads persisted feature records back out of the durable
// store. Only available when the store backend supports reads.
type HistoryUseCase struct {
	reader drepo.HistoryReader
}

func NewHistoryUseCase(reader drepo.HistoryReader) *HistoryUseCase {
	return &HistoryUseCase{reader: reader}
}

// Available reports whether a readable store backend is configured.
func (uc *HistoryUseCase) Available() bool { return uc.reader != nil }

type GetHistoryParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	N      int
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) ([]models.FeatureRecord, error) {
	if uc.reader == nil {
		return nil, fmt.Errorf("history not available for configured store backend")
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.N <= 0 {
		p.N = 100
	}
	if p.N > 10000 {
		p.N = 10000
	}

	if !p.From.IsZero() || !p.To.IsZero() {
		if p.To.IsZero() {
			p.To = time.Now()
		}
		if p.From.After(p.To) {
			return nil, fmt.Errorf("from must be <= to")
		}
		return uc.reader.Range(ctx, p.Symbol, p.From, p.To, p.N)
	}
	return uc.reader.LatestN(ctx, p.Symbol, p.N)
}
