package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcusjoshm/percell-sub001/internal/app/run"
	"github.com/marcusjoshm/percell-sub001/internal/config"
	"github.com/marcusjoshm/percell-sub001/internal/domain"
	"github.com/marcusjoshm/percell-sub001/internal/infra/fsx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "pair":
		if code := pairCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:          ra.Path,
		Timepoints:    ra.Timepoints,
		TimepointsSet: ra.TimepointsSet,
		Apply:         ra.Apply,
		ApplySet:      ra.ApplySet,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, domain.ModeBatch, ra.Apply, ra.ApplySet, err)
		emitReport(rr)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	// apply：必须写入 <path>/roitrack-report.json；dry-run 禁止落盘。
	// 时间点不足两个的 no-op 承诺不改任何文件，报告也不写。
	if eff.Apply && len(eff.Timepoints) == 2 {
		if err := writeReportFile(eff.Path, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 roitrack-report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func pairCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printPairUsage()
			return 0
		}
	}

	pa, err := parsePairArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printPairUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadPairMode(cwd, config.CLIArgs{
		Apply:    pa.Apply,
		ApplySet: pa.ApplySet,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, domain.ModePair, pa.Apply, pa.ApplySet, err)
		emitReport(rr)
		return 1
	}

	rr := run.ExecutePair(context.Background(), eff, pa.PathA, pa.PathB)

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Path          string
	Timepoints    []string
	TimepointsSet bool
	Apply         bool
	ApplySet      bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--timepoints":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--timepoints 需要一个值")
			}
			i++
			tokens, err := splitTimepoints(args[i])
			if err != nil {
				return runArgs{}, err
			}
			ra.Timepoints = tokens
			ra.TimepointsSet = true
		case strings.HasPrefix(a, "--timepoints="):
			tokens, err := splitTimepoints(strings.TrimPrefix(a, "--timepoints="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Timepoints = tokens
			ra.TimepointsSet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	if ra.TimepointsSet {
		if err := config.ValidateTimepoints(ra.Timepoints); err != nil {
			return runArgs{}, err
		}
	}

	return ra, nil
}

// splitTimepoints 解析 --timepoints 的逗号分隔值；空白会被去掉，空段被忽略。
func splitTimepoints(v string) ([]string, error) {
	if strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("--timepoints 不能为空")
	}
	parts := strings.Split(v, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("--timepoints 不能为空")
	}
	return tokens, nil
}

type pairArgs struct {
	PathA    string
	PathB    string
	Apply    bool
	ApplySet bool
}

func parsePairArgs(args []string) (pairArgs, error) {
	pa := pairArgs{}
	paths := make([]string, 0, 2)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--apply":
			pa.Apply = true
			pa.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				pa.Apply = true
			case "false":
				pa.Apply = false
			default:
				return pairArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			pa.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return pairArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if len(paths) >= 2 {
				return pairArgs{}, fmt.Errorf("多余的位置参数 %q（只接受两个归档路径）", a)
			}
			paths = append(paths, a)
		}
	}

	if len(paths) != 2 {
		return pairArgs{}, fmt.Errorf("需要两个归档路径（源与目标），实际 %d 个", len(paths))
	}
	pa.PathA = paths[0]
	pa.PathB = paths[1]
	return pa, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  roitrack run [root] [--timepoints t00,t03] [--apply[=true|false]]
  roitrack pair <pathA> <pathB> [--apply[=true|false]]

命令：
  run    批处理：在 root 下发现时间点归档对并重排（默认 apply）
  pair   单对模式：直接指定两个归档文件

使用 "roitrack run --help" 或 "roitrack pair --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  roitrack run [root] [--timepoints t00,t03] [--apply[=true|false]]

参数：
  --timepoints  两个时间点标记，逗号分隔（t+数字，如 t00,t03）；未指定则读配置文件
  --apply       执行备份与写回（默认 true）；--apply=false 只匹配并报告，不写盘
  -h, --help    显示帮助

少于两个时间点标记时视为 no-op 成功（不写任何文件）。
`)
}

func printPairUsage() {
	fmt.Fprint(os.Stdout, `用法：
  roitrack pair <pathA> <pathB> [--apply[=true|false]]

参数：
  pathA       参考时间点的 ROI 归档（只读）
  pathB       待重排时间点的 ROI 归档（备份后按匹配顺序重写）
  --apply     执行备份与写回（默认 true）；--apply=false 只匹配并报告，不写盘
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：processed=%d skipped=%d failed=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, p := range rr.Pairs {
				if p.Status != domain.StatusFailed {
					continue
				}
				key := p.PathA
				if key == "" {
					// 配置错误等合成条目没有 path_a。
					key = "<unknown>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, p.ErrorCode, p.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs, mode string, cliApply, cliApplySet bool, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Root: cwdAbs,
		Mode: mode,
		// 配置没能加载，apply 无从合并；按 CLI 所见报告（默认 apply）。
		DryRun:     cliApplySet && !cliApply,
		StartedAt:  now,
		FinishedAt: now,
		Pairs: []domain.PairResult{{
			Status:    domain.StatusFailed,
			Stage:     domain.StageDiscover,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(root, "roitrack-report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Path, "roitrack-report.json"))
		fmt.Fprintf(w, "backup: 被重写归档同目录下的 *.bak\n")
	}
}
