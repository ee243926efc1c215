package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"StockChart/internal/config"
	"StockChart/internal/input"
	"StockChart/internal/model"
	"StockChart/internal/notifier"
	"StockChart/internal/pipeline"
	"StockChart/internal/recorder"
)

// Runner executes one export session.
type Runner interface {
	Run(ctx context.Context, q model.Query, source string) (*pipeline.Summary, error)
}

// Notifier delivers reports and exported files.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
	SendDocument(ctx context.Context, path, caption string) error
}

// History lists past sessions.
type History interface {
	RecentSessions(limit int) ([]recorder.Session, error)
}

// Scheduler runs configured export jobs on cron and answers bot commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier Notifier // optional
	History  History
	Ctx      context.Context
	Logger   *logrus.Logger

	jobs []config.Job
	now  func() time.Time
}

// NewScheduler creates a new Scheduler. n may be nil when Telegram is not configured.
func NewScheduler(ctx context.Context, r Runner, n Notifier, h History, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Runner:   r,
		Notifier: n,
		History:  h,
		Ctx:      ctx,
		Logger:   logger,
		now:      time.Now,
	}
}

// RegisterJobs adds one cron entry per job.
func (s *Scheduler) RegisterJobs(jobs []config.Job) error {
	for _, j := range jobs {
		job := j
		if _, err := s.Cron.AddFunc(job.Cron, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
		s.jobs = append(s.jobs, job)
		s.Logger.WithFields(logrus.Fields{"job": job.Name, "cron": job.Cron, "symbol": job.Symbol}).Info("job registered")
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunAllNow executes every registered job once, in order.
func (s *Scheduler) RunAllNow() {
	for _, j := range s.jobs {
		s.runJob(j)
	}
}

// JobQuery is the trailing window ending today that a job covers.
func (s *Scheduler) JobQuery(j config.Job) (model.Query, error) {
	to := s.now()
	from := to.AddDate(0, 0, -j.LookbackDays)
	return input.BuildQuery(j.Symbol, from, to)
}

func (s *Scheduler) runJob(j config.Job) {
	log := s.Logger.WithField("job", j.Name)
	log.Info("running job")
	q, err := s.JobQuery(j)
	if err != nil {
		log.WithError(err).Error("build job query")
		return
	}
	sum, err := s.Runner.Run(s.Ctx, q, "cron:"+j.Name)
	if err != nil {
		log.WithError(err).Error("job finished with error")
	}
	if sum != nil {
		s.deliver(sum)
	}
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Strip a "@botname" suffix from group-chat commands.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/fetch":
		if len(fields) != 4 {
			return "Usage: /fetch SYM dd/mm/yyyy dd/mm/yyyy"
		}
		q, err := input.NewQuery(fields[1], fields[2], fields[3])
		if err != nil {
			return "Invalid request: " + err.Error()
		}
		sum, err := s.Runner.Run(ctx, q, "telegram")
		if err != nil {
			s.Logger.WithError(err).WithField("symbol", q.Symbol).Warn("fetch command finished with error")
		}
		if sum == nil {
			return "Fetch failed: " + err.Error()
		}
		s.sendFiles(ctx, sum)
		return notifier.FormatSummary(sum)
	case "/history":
		limit := 10
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				limit = n
			}
		}
		if s.History == nil {
			return notifier.FormatHistory(nil)
		}
		sessions, err := s.History.RecentSessions(limit)
		if err != nil {
			s.Logger.WithError(err).Error("load history")
			return "Could not load history."
		}
		return notifier.FormatHistory(sessions)
	case "/jobs":
		if len(s.jobs) == 0 {
			return "No scheduled jobs."
		}
		var b strings.Builder
		b.WriteString("Scheduled jobs:\n")
		for _, j := range s.jobs {
			b.WriteString(fmt.Sprintf("• %s: %s, %d days, cron %s\n", j.Name, j.Symbol, j.LookbackDays, j.Cron))
		}
		return b.String()
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) deliver(sum *pipeline.Summary) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, notifier.FormatSummary(sum), 3); err != nil {
		s.Logger.WithError(err).Error("send notification")
	}
	s.sendFiles(s.Ctx, sum)
}

func (s *Scheduler) sendFiles(ctx context.Context, sum *pipeline.Summary) {
	if s.Notifier == nil {
		return
	}
	for _, p := range []string{sum.SpreadsheetPath, sum.ChartPath} {
		if p == "" {
			continue
		}
		if err := s.Notifier.SendDocument(ctx, p, sum.Query.Symbol); err != nil {
			s.Logger.WithError(err).WithField("path", p).Error("send document")
		}
	}
}
