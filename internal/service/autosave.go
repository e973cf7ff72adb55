package service

import (
	"errors"
	"hash/fnv"
	"sync"

	"eduquiz_backend/internal/util"
	"eduquiz_backend/pkg/logger"
	"eduquiz_backend/pkg/monitoring"

	"go.uber.org/zap"
)

type autosaveJob struct {
	attemptID  string
	questionID string
	value      string
	seq        int64
}

// Autosaver persists answers asynchronously. Jobs are sharded by
// (attempt, question) so writes for one question are applied in order by a
// single worker; across requests the sequence number still decides, so a
// replayed or reordered delivery can never clobber a newer value.
type Autosaver struct {
	attempts *AttemptService
	shards   []chan autosaveJob
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewAutosaver(attempts *AttemptService, shardCount, buffer int) *Autosaver {
	if shardCount <= 0 {
		shardCount = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	shards := make([]chan autosaveJob, shardCount)
	for i := range shards {
		shards[i] = make(chan autosaveJob, buffer)
	}
	return &Autosaver{attempts: attempts, shards: shards}
}

// Run starts the shard workers and blocks until Stop drains them.
func (a *Autosaver) Run() {
	for _, ch := range a.shards {
		a.wg.Add(1)
		go a.worker(ch)
	}
	a.wg.Wait()
}

// Stop closes the queues; queued jobs are still written before Run returns.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		for _, ch := range a.shards {
			close(ch)
		}
	})
	a.wg.Wait()
}

// Enqueue hands off one answer write. It never blocks the request path: when
// the shard's buffer is full the write is dropped and reported to the caller.
func (a *Autosaver) Enqueue(attemptID, questionID, value string, seq int64) bool {
	job := autosaveJob{attemptID: attemptID, questionID: questionID, value: value, seq: seq}
	select {
	case a.shards[a.shardFor(attemptID, questionID)] <- job:
		return true
	default:
		monitoring.AutosaveDropped.WithLabelValues("queue_full").Inc()
		return false
	}
}

func (a *Autosaver) shardFor(attemptID, questionID string) int {
	h := fnv.New32a()
	h.Write([]byte(attemptID))
	h.Write([]byte{':'})
	h.Write([]byte(questionID))
	return int(h.Sum32() % uint32(len(a.shards)))
}

func (a *Autosaver) worker(ch chan autosaveJob) {
	defer a.wg.Done()
	for job := range ch {
		err := a.attempts.RecordAnswer(job.attemptID, job.questionID, job.value, job.seq)
		switch {
		case err == nil:
		case errors.Is(err, util.ErrAttemptClosed), errors.Is(err, util.ErrAttemptNotFound):
			// terminal for this attempt, not worth retrying
			monitoring.AutosaveDropped.WithLabelValues("attempt_closed").Inc()
		default:
			monitoring.AutosaveDropped.WithLabelValues("store_error").Inc()
			logger.Log.Error("autosave write failed",
				zap.String("attemptId", job.attemptID),
				zap.String("questionId", job.questionID),
				zap.Error(err))
		}
	}
}
