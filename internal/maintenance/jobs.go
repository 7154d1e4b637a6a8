package maintenance

import (
	"context"

	"github.com/packrat-ai/packrat/internal/blockcache"
	"github.com/packrat-ai/packrat/internal/journal"
)

// CacheFlushJob periodically persists the block cache so a crash between
// swaps loses at most one flush interval of background compression work.
type CacheFlushJob struct {
	Cache *blockcache.Cache
	Cron  string
}

func (j *CacheFlushJob) Name() string     { return "cache-flush" }
func (j *CacheFlushJob) Schedule() string { return j.Cron }

func (j *CacheFlushJob) Run(_ context.Context) error {
	return j.Cache.Flush()
}

// JournalVacuumJob compacts the event journal database.
type JournalVacuumJob struct {
	Journal *journal.Journal
	Cron    string
}

func (j *JournalVacuumJob) Name() string     { return "journal-vacuum" }
func (j *JournalVacuumJob) Schedule() string { return j.Cron }

func (j *JournalVacuumJob) Run(ctx context.Context) error {
	return j.Journal.Vacuum(ctx)
}

// Compile-time interface guards.
var (
	_ Job = (*CacheFlushJob)(nil)
	_ Job = (*JournalVacuumJob)(nil)
)
