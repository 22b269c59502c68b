package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// 处理阶段（discover → load → match → backup → write → done）。
// 失败条目的 Stage 记录倒在哪一步；成功条目固定为 done。
const (
	StageDiscover = "discover"
	StageLoad     = "load"
	StageMatch    = "match"
	StageBackup   = "backup"
	StageWrite    = "write"
	StageDone     = "done"
)

const (
	ErrCodeArchiveRead        = "archive_read_failed"
	ErrCodeGeometryInvalid    = "geometry_invalid"
	ErrCodeAssignmentInput    = "assignment_input_empty"
	ErrCodeCounterpartMissing = "counterpart_missing"
	ErrCodeTokenNotInPath     = "token_not_in_path"
	ErrCodeDuplicateTarget    = "duplicate_target"
	ErrCodeBackupFailed       = "backup_failed"
	ErrCodeWriteFailed        = "write_failed"
	ErrCodeIOFailed           = "io_failed"
	ErrCodeConfigNotFound     = "config_not_found"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeConfigMissingPath  = "config_missing_path"
)

const (
	ModeBatch = "batch"
	ModePair  = "pair"
)

const (
	BackupCreated = "created"
	BackupExists  = "exists"
)

// RunReport 是对外稳定输出（roitrack-report.json / stdout JSON）的结构。
type RunReport struct {
	Root   string `json:"root"`
	Mode   string `json:"mode"`
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Pairs   []PairResult  `json:"pairs"`
}

type ReportSummary struct {
	Discovered int `json:"discovered"`
	Processed  int `json:"processed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type PairResult struct {
	PathA string `json:"path_a"`
	PathB string `json:"path_b"`

	Status    string `json:"status"`
	Stage     string `json:"stage"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Backup："created"（本次创建）/"exists"（历史备份已存在，保持不动）/
	// ""（dry-run 或未走到备份一步）。
	Backup  string `json:"backup"`
	Written bool   `json:"written"`

	Stats MatchStats `json:"stats"`
}

// MatchStats 是单对文件的匹配统计（dry-run 与 apply 均填充）。
type MatchStats struct {
	RoisA int `json:"rois_a"`
	RoisB int `json:"rois_b"`

	// BadEntriesA/BadEntriesB 是 skip_bad_entries 生效时被计数丢弃的坏条目数，
	// 坏条目不会进入换序后的归档。
	BadEntriesA int `json:"bad_entries_a"`
	BadEntriesB int `json:"bad_entries_b"`

	Matched   int     `json:"matched"`
	TrailingB int     `json:"trailing_b"`
	DroppedA  int     `json:"dropped_a"`
	TotalCost float64 `json:"total_cost"`
	MeanCost  float64 `json:"mean_cost"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) pairs 稳定排序：按 path_a 字典序；path_a=="" 的条目排在最后
// 3) summary 由 pairs 计算得出（discovered = processed + failed，
//    skipped 单独计数，不参与 discovered）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Pairs, func(i, j int) bool {
		a := r.Pairs[i].PathA
		b := r.Pairs[j].PathA
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, p := range r.Pairs {
		switch p.Status {
		case StatusProcessed:
			s.Processed++
			s.Discovered++
		case StatusFailed:
			s.Failed++
			s.Discovered++
		case StatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
