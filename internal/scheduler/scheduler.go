package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/abdoElHodaky/smartfixapi/internal/logger"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
)

// sweepBatchSize ограничивает число заявок за один проход автоподбора.
const sweepBatchSize = 50

// StaleRequestSource возвращает заявки, залежавшиеся без откликов.
type StaleRequestSource interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.ServiceRequest, error)
}

// Scheduler периодически прогоняет автоподбор по заявкам, оставшимся
// без откликов, и уведомляет подходящих исполнителей.
type Scheduler struct {
	cron     *cron.Cron
	requests StaleRequestSource
	matches  *service.MatchService
	minAge   time.Duration
}

// New создаёт планировщик автоподбора.
func New(requests *repository.RequestRepository, matches *service.MatchService, minAge time.Duration) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		requests: requests,
		matches:  matches,
		minAge:   minAge,
	}
}

// Start регистрирует задачу по cron-выражению и запускает планировщик.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	logger.Log.WithField("spec", spec).Info("scheduler: автоподбор запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущего прохода.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep выполняет один проход: находит ожидающие заявки без откликов
// старше minAge и рассылает уведомления подходящим исполнителям.
func (s *Scheduler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.minAge)

	stale, err := s.requests.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		logger.Log.WithError(err).Error("scheduler: не удалось получить заявки без откликов")
		return
	}

	var notified int
	for i := range stale {
		n, err := s.matches.NotifyMatches(ctx, stale[i].ID)
		if err != nil {
			logger.Log.WithError(err).WithField("request_id", stale[i].ID).Warn("scheduler: автоподбор не удался")
			continue
		}
		notified += n
	}

	if len(stale) > 0 {
		logger.Log.WithFields(logrus.Fields{
			"requests": len(stale),
			"notified": notified,
		}).Info("scheduler: проход автоподбора завершён")
	}
}
