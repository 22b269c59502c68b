package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/marcusjoshm/percell-sub001/internal/app/run"
	"github.com/marcusjoshm/percell-sub001/internal/config"
	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间无配对完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	skip    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "apply"
	modeHint := ""
	if !eff.Apply {
		mode = "dry-run"
		modeHint = " (不备份/不写回)"
	}

	fmt.Fprintf(p.w, "[%s] roitrack run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  timepoints: %s\n", formatStringListJSON(eff.Timepoints))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  archive_suffix: %s\n", eff.ArchiveSuffix)
	fmt.Fprintf(p.w, "  skip_bad_entries: %s\n", onOff(eff.SkipBadEntries))
	fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))

	if eff.Apply {
		fmt.Fprintln(p.w, "输出:")
		fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.Path, "roitrack-report.json"))
		fmt.Fprintf(p.w, "  backup: 被重写归档同目录下的 *.bak\n")
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "discover":
		fmt.Fprintf(p.w, "发现: pairs=%d skipped=%d (%s)\n",
			intField(fields, "pairs"), intField(fields, "skipped"), formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_pairs")
		fmt.Fprintf(p.w, "执行: workers=%d total_pairs=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPairDone(idx, total int, res domain.PairResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total

	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
	case domain.StatusFailed:
		p.fail++
	case domain.StatusSkipped:
		p.skip++
	}

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusProcessed:
		status = "OK"
	case domain.StatusSkipped:
		status = "SKIP"
	case domain.StatusFailed:
		status = "FAIL"
	}

	name := pairLabel(res)

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, name, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s (%s)\n",
			idx, total, name, status, res.ErrorCode, formatShortDuration(dur),
		)
	default:
		extra := ""
		if bad := res.Stats.BadEntriesA + res.Stats.BadEntriesB; bad > 0 {
			extra += fmt.Sprintf(" bad_entries=%d", bad)
		}
		if res.Backup != "" {
			extra += " backup=" + res.Backup
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s matched=%d trailing_b=%d dropped_a=%d cost=%.2f%s (%s)\n",
			idx, total, name, status,
			res.Stats.Matched, res.Stats.TrailingB, res.Stats.DroppedA, res.Stats.TotalCost,
			extra, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, skip, active int, activePaths []string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
		done, total, ok, fail, skip, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnPairDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := p.workers
					remain := p.total - p.done
					if remain < active {
						active = remain
					}
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, active, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

// pairLabel 取结果行的定位锚点：优先被重写一侧（path_b）的文件名。
func pairLabel(res domain.PairResult) string {
	if res.PathB != "" {
		return filepath.Base(res.PathB)
	}
	if res.PathA != "" {
		return filepath.Base(res.PathA)
	}
	return "<unknown>"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
