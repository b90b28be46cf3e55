package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-hiring-go/internal/logger"

	"golang.org/x/sync/errgroup"
)

// RepairStore 扫描卡住的评估并重新排队
type RepairStore interface {
	RequeueStore
	ListStaleEvaluations(ctx context.Context, pendingBefore time.Time, includeFailed bool, limit int) ([]string, error)
}

// RepairOptions 修复参数
type RepairOptions struct {
	// PendingOlderThan PENDING 超过该时长视为投递丢失
	PendingOlderThan time.Duration
	IncludeFailed    bool
	Limit            int
	Concurrency      int
	DryRun           bool
}

// RepairResult 一次修复的统计
type RepairResult struct {
	Scanned  int
	Requeued int
	Failed   int
	Errors   []string
}

// Repair 找出卡在 PENDING 或失败的评估，按最新简历重新投递。单个候选人失败不影响其他
func (d *Dispatcher) Repair(ctx context.Context, store RepairStore, opts RepairOptions) (*RepairResult, error) {
	if opts.PendingOlderThan <= 0 {
		opts.PendingOlderThan = 30 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}

	ids, err := store.ListStaleEvaluations(ctx, d.now().Add(-opts.PendingOlderThan), opts.IncludeFailed, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("查询待修复评估失败: %w", err)
	}
	res := &RepairResult{Scanned: len(ids), Errors: []string{}}
	logger.Ctx(ctx).Info().Int("count", len(ids)).Bool("dry_run", opts.DryRun).Msg("待修复评估")
	if opts.DryRun || len(ids) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := d.Requeue(gctx, store, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
				logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", id).Msg("重新排队失败")
				return nil
			}
			res.Requeued++
			return nil
		})
	}
	_ = g.Wait()

	logger.Ctx(ctx).Info().Int("requeued", res.Requeued).Int("failed", res.Failed).Msg("评估修复完成")
	return res, nil
}
