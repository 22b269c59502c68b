package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcusjoshm/percell-sub001/internal/config"
	"github.com/marcusjoshm/percell-sub001/internal/discover"
	"github.com/marcusjoshm/percell-sub001/internal/domain"
	"github.com/marcusjoshm/percell-sub001/internal/geom"
	"github.com/marcusjoshm/percell-sub001/internal/infra/fsx"
	"github.com/marcusjoshm/percell-sub001/internal/match"
	"github.com/marcusjoshm/percell-sub001/internal/roizip"
)

// Execute 执行一次批处理（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为配对级失败（单对失败不影响其他对）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Root:      eff.Path,
		Mode:      domain.ModeBatch,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Pairs:     make([]domain.PairResult, 0, 128),
	}

	// 少于两个时间点没有可追踪的对象：按约定是 no-op 成功。
	if len(eff.Timepoints) < 2 {
		if len(eff.Timepoints) == 1 {
			rr.TokenA = eff.Timepoints[0]
		}
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	rr.TokenA = eff.Timepoints[0]
	rr.TokenB = eff.Timepoints[1]

	discoverStarted := time.Now()
	pairs, skips, err := discover.FindPairs(eff.Path, rr.TokenA, rr.TokenB, eff.ArchiveSuffix, eff.ExcludeDirs)
	if err != nil {
		rr.Pairs = append(rr.Pairs, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	discoverDur := time.Since(discoverStarted)

	if obs != nil {
		obs.OnPhaseDone("discover", map[string]any{
			"pairs":   len(pairs),
			"skipped": len(skips),
		}, discoverDur)
	}

	// 跳过项：每个候选文件单独形成一条结果（更可解释，便于用户逐个修复）。
	for _, s := range skips {
		rr.Pairs = append(rr.Pairs, skippedPair(s))
	}

	// 执行阶段：按配对并发（worker pool），对内串行。
	// 发现阶段已对目标路径去重，worker 之间不会共享目标。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_pairs": len(pairs),
		}, 0)
	}

	type execResult struct {
		res domain.PairResult
		dur time.Duration
	}

	jobs := make(chan domain.FilePair)
	results := make(chan execResult, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				oneStarted := time.Now()
				r := execOne(ctx, eff, p)
				results <- execResult{
					res: r,
					dur: time.Since(oneStarted),
				}
			}
		}()
	}

	go func() {
		for _, p := range pairs {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Pairs = append(rr.Pairs, it.res)
		if obs != nil {
			obs.OnPairDone(done, len(pairs), it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// ExecutePair 处理显式给定的一对归档（单对模式）。
// 与批处理不同：错误不降级，调用方应把失败映射为非零退出码。
func ExecutePair(ctx context.Context, eff config.EffectiveConfig, pathA, pathB string) domain.RunReport {
	rr := domain.RunReport{
		Root:      eff.Path,
		Mode:      domain.ModePair,
		DryRun:    !eff.Apply,
		StartedAt: time.Now().UTC(),
		Pairs:     make([]domain.PairResult, 0, 1),
	}

	rr.Pairs = append(rr.Pairs, execOne(ctx, eff, domain.FilePair{PathA: pathA, PathB: pathB}))

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func skippedPair(s domain.Skip) domain.PairResult {
	return domain.PairResult{
		PathA:     s.Path,
		Status:    domain.StatusSkipped,
		Stage:     domain.StageDiscover,
		ErrorCode: s.Reason,
		ErrorMsg:  s.Msg,
	}
}

func syntheticFailed(code, msg string) domain.PairResult {
	return domain.PairResult{
		Status:    domain.StatusFailed,
		Stage:     domain.StageDiscover,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// execOne 走完单对的状态机：load → match → backup → write → done。
// 任何一步失败都把失败钉在那一步上，并完整保留已算出的统计。
func execOne(ctx context.Context, eff config.EffectiveConfig, p domain.FilePair) domain.PairResult {
	res := domain.PairResult{
		PathA:  p.PathA,
		PathB:  p.PathB,
		Status: domain.StatusProcessed, // 失败时覆盖
		Stage:  domain.StageDone,
	}

	if err := ctx.Err(); err != nil {
		failPair(&res, domain.StageLoad, domain.ErrCodeIOFailed, fmt.Sprintf("运行被取消：%v", err))
		return res
	}

	opts := roizip.LoadOptions{SkipBadEntries: eff.SkipBadEntries}

	setA, badA, err := roizip.LoadDecoded(p.PathA, opts)
	if err != nil {
		failPair(&res, domain.StageLoad, domain.ErrCodeArchiveRead, err.Error())
		return res
	}
	res.Stats.RoisA = len(setA)
	res.Stats.BadEntriesA = badA

	setB, badB, err := roizip.LoadDecoded(p.PathB, opts)
	if err != nil {
		failPair(&res, domain.StageLoad, domain.ErrCodeArchiveRead, err.Error())
		return res
	}
	res.Stats.RoisB = len(setB)
	res.Stats.BadEntriesB = badB

	centA, err := centroids(setA)
	if err != nil {
		failPair(&res, domain.StageMatch, domain.ErrCodeGeometryInvalid, fmt.Sprintf("%s：%v", p.PathA, err))
		return res
	}
	centB, err := centroids(setB)
	if err != nil {
		failPair(&res, domain.StageMatch, domain.ErrCodeGeometryInvalid, fmt.Sprintf("%s：%v", p.PathB, err))
		return res
	}

	asg, err := match.Match(centA, centB)
	if err != nil {
		var ie *match.InputError
		if errors.As(err, &ie) {
			failPair(&res, domain.StageMatch, domain.ErrCodeAssignmentInput,
				fmt.Sprintf("ROI 集合为空（A=%d，B=%d），无法匹配", ie.LenA, ie.LenB))
			return res
		}
		failPair(&res, domain.StageMatch, domain.ErrCodeAssignmentInput, err.Error())
		return res
	}

	res.Stats.Matched = asg.Matched
	res.Stats.TrailingB = len(asg.Order) - asg.Matched
	res.Stats.DroppedA = asg.DroppedA
	res.Stats.TotalCost = asg.TotalCost
	if asg.Matched > 0 {
		res.Stats.MeanCost = asg.TotalCost / float64(asg.Matched)
	}

	// 按映射换序 B 的原始字节：匹配前缀对齐 A，尾部保持原始相对顺序。
	blobs := make([][]byte, len(asg.Order))
	for k, idx := range asg.Order {
		blobs[k] = setB[idx].Raw
	}

	// dry-run：到此为止，不备份、不写盘。
	if !eff.Apply {
		return res
	}

	created, err := fsx.EnsureBackup(p.PathB)
	if err != nil {
		failPair(&res, domain.StageBackup, domain.ErrCodeBackupFailed, err.Error())
		return res
	}
	if created {
		res.Backup = domain.BackupCreated
	} else {
		res.Backup = domain.BackupExists
	}

	if err := roizip.WriteReordered(blobs, p.PathB); err != nil {
		failPair(&res, domain.StageWrite, domain.ErrCodeWriteFailed, err.Error())
		return res
	}
	res.Written = true

	return res
}

func centroids(set domain.ROISet) ([]domain.Point, error) {
	pts := make([]domain.Point, len(set))
	for i, rec := range set {
		c, err := geom.Centroid(rec.Geometry)
		if err != nil {
			return nil, fmt.Errorf("条目 %q：%w", rec.Name, err)
		}
		pts[i] = c
	}
	return pts, nil
}

func failPair(res *domain.PairResult, stage, code, msg string) {
	res.Status = domain.StatusFailed
	res.Stage = stage
	res.ErrorCode = code
	res.ErrorMsg = msg
}
