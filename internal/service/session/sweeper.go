package session

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically evicts idle chats from a Store.
type Sweeper struct {
	store   *Store
	spec    string
	cron    *cron.Cron
	entryID cron.EntryID
	logger  *logrus.Entry
}

// NewSweeper creates a sweeper running on a cron spec such as "@every 5m".
func NewSweeper(store *Store, spec string) *Sweeper {
	return &Sweeper{
		store:  store,
		spec:   spec,
		cron:   cron.New(),
		logger: logrus.WithField("component", "session"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	entryID, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("session sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	if removed := s.store.Sweep(time.Now().UTC()); removed > 0 {
		s.logger.WithField("evicted", removed).Info("evicted idle sessions")
	}
}
