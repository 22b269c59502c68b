package run

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/marcusjoshm/percell-sub001/internal/config"
	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	pairs      []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnPairDone(idx, total int, res domain.PairResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pairs = append(o.pairs, res.PathA)
}

func (o *recordObserver) OnProgress(done, total, ok, fail, skip, active int, activePaths []string, elapsed time.Duration) {
	// keepalive 由 CLI 触发；这里无需断言。
}

func TestExecuteWithObserver_EmitsPhaseAndPairEvents(t *testing.T) {
	root := t.TempDir()
	pathA := filepath.Join(root, "f_t00_rois.zip")
	writeROIArchive(t, pathA, []domain.Point{{X: 10, Y: 10}})
	writeROIArchive(t, filepath.Join(root, "f_t03_rois.zip"), []domain.Point{{X: 12, Y: 10}})

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), effFor(root, false), obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}

	wantPhases := []string{"discover", "exec"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if len(obs.pairs) != 1 || obs.pairs[0] != pathA {
		t.Fatalf("配对事件不符合预期：pairs=%v", obs.pairs)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	root := t.TempDir()
	writeROIArchive(t, filepath.Join(root, "s1_t00_rois.zip"), []domain.Point{{X: 10, Y: 10}})
	writeROIArchive(t, filepath.Join(root, "s1_t03_rois.zip"), []domain.Point{{X: 12, Y: 10}})
	writeROIArchive(t, filepath.Join(root, "s2_t00_rois.zip"), []domain.Point{{X: 50, Y: 50}})
	writeROIArchive(t, filepath.Join(root, "s2_t03_rois.zip"), []domain.Point{{X: 52, Y: 50}})

	cfg := effFor(root, false)

	a := Execute(context.Background(), cfg)
	b := ExecuteWithObserver(context.Background(), cfg, nil)

	// 时间字段本身允许有微小差异；对比时归零。
	a.StartedAt, a.FinishedAt = time.Time{}, time.Time{}
	b.StartedAt, b.FinishedAt = time.Time{}, time.Time{}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
