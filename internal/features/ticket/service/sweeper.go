package service

import (
	"context"
	"sync"
	"time"

	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

// ExpirySweeper periodically reverts reserved tickets whose 24-hour hold has
// lapsed back to available. The lazy release on read already keeps the public
// view honest; the sweeper exists so abandoned reservations are freed even
// when nobody looks at the raffle.
type ExpirySweeper struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tickets  repository.TicketRepository
	interval time.Duration
	wg       sync.WaitGroup
}

func NewExpirySweeper(tickets repository.TicketRepository, interval time.Duration) *ExpirySweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpirySweeper{
		ctx:      ctx,
		cancel:   cancel,
		tickets:  tickets,
		interval: interval,
	}
}

func (s *ExpirySweeper) Start() {
	if s.interval <= 0 {
		logger.Info().Msg("Expiry sweeper disabled")
		return
	}

	logger.Info().Dur("interval", s.interval).Msg("Starting expiry sweeper")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *ExpirySweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("Expiry sweeper stopped")
}

func (s *ExpirySweeper) sweep() {
	released, err := s.tickets.ReleaseExpired(s.ctx, time.Now())
	if err != nil {
		// Opportunistic background work: log and try again next tick.
		logger.Warn().Err(err).Msg("Expiry sweep failed")
		return
	}

	if released > 0 {
		logger.Info().Int("released", released).Msg("Released expired reservations")
	}
}
