package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 roitrack.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// FileName 是配置文件的固定名字。
	FileName = "roitrack.json"
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// DefaultSuffix 是归档文件名的默认后缀约定。
	DefaultSuffix = "_rois.zip"
)

// 时间点标记：t + 数字（t00、t3、t120）。
var tokenRE = regexp.MustCompile(`^t[0-9]+$`)

// CLIArgs 只包含 CLI 暴露的三项入口（path/timepoints/apply），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	Timepoints    []string
	TimepointsSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 roitrack.json 的解析结构。
type FileConfig struct {
	Path           string   `json:"path"`
	Timepoints     []string `json:"timepoints"`
	Apply          *bool    `json:"apply"`
	Concurrency    int      `json:"concurrency"`
	ArchiveSuffix  string   `json:"archive_suffix"`
	SkipBadEntries bool     `json:"skip_bad_entries"`
	ExcludeDirs    []string `json:"exclude_dirs"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Timepoints []string
	Apply      bool

	Concurrency    int
	ArchiveSuffix  string
	SkipBadEntries bool
	ExcludeDirs    []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ValidateTimepoints 校验时间点标记列表。
// 0 或 1 个是合法的（运行层按 no-op 成功处理）；两个必须互不相同；
// 超过两个属于用户错误。CLI 与配置文件共用这一套规则。
func ValidateTimepoints(tokens []string) error {
	if len(tokens) > 2 {
		return fmt.Errorf("时间点标记最多两个，实际 %d 个", len(tokens))
	}
	for _, tok := range tokens {
		if !tokenRE.MatchString(tok) {
			return fmt.Errorf("时间点标记必须是 t+数字（如 t00），实际 %q", tok)
		}
	}
	if len(tokens) == 2 && tokens[0] == tokens[1] {
		return fmt.Errorf("两个时间点标记不能相同：%q", tokens[0])
	}
	return nil
}

// LoadEffective 按文档约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/roitrack.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/roitrack.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - timepoints：CLI > config > 空（空或单个 → 运行层 no-op 成功）
// - apply：CLI --apply/--apply=false > config > 默认 true
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/roitrack.json。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath = filepath.Join(absPath, FileName)

		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}

		return merge(absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/roitrack.json，且其中必须包含 path。
	cfgPath = filepath.Join(cwdAbs, FileName)
	var exists bool
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

// LoadPairMode 为单对模式构造配置：<cwd>/roitrack.json 可选，
// 不要求 path/timepoints（两个文件路径由命令行位置参数直接给出）。
func LoadPairMode(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	cli.Timepoints = nil
	cli.TimepointsSet = true // 单对模式不消费 timepoints
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// timepoints：CLI > config > 空
	timepoints := normalizeTokens(fc.Timepoints)
	if cli.TimepointsSet {
		timepoints = normalizeTokens(cli.Timepoints)
	}
	if err := ValidateTimepoints(timepoints); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// apply：CLI > config > 默认 true（本工具按约定是写通式批处理）
	apply := true
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 文档约定：范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	suffix := strings.TrimSpace(fc.ArchiveSuffix)
	if suffix == "" {
		suffix = DefaultSuffix
	}

	return EffectiveConfig{
		Path:           absPath,
		Timepoints:     timepoints,
		Apply:          apply,
		Concurrency:    concurrency,
		ArchiveSuffix:  suffix,
		SkipBadEntries: fc.SkipBadEntries,
		ExcludeDirs:    append([]string(nil), fc.ExcludeDirs...),
	}, nil
}

func normalizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
