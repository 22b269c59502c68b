package discover

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

// FindPairs 在 root 下定位两个时间点的归档文件对。
//
// 规则（硬约束）：
// - 候选：基名内嵌 token 且以 suffix 结尾的文件（如 *t00*_rois.zip）
// - 对应文件：对完整路径做 tokenA→tokenB 的字面替换（每处出现都替换）
// - 替换结果不在 tokenB 侧集合中 → 警告跳过（counterpart_missing，非致命）
// - 多个源推导出同一目标 → 只保留路径序最小的源，其余跳过
//   （duplicate_target；保证并发 worker 不会共享目标路径）
// - excludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
//
// 输出按 PathA 字典序排序，跨平台稳定。扫描阶段不读文件内容。
func FindPairs(root, tokenA, tokenB, suffix string, excludeDirs []string) ([]domain.FilePair, []domain.Skip, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	aFiles := make([]string, 0, 64)
	bSet := make(map[string]bool, 64)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, suffix) {
			return nil
		}
		if strings.Contains(name, tokenA) {
			aFiles = append(aFiles, path)
		}
		if strings.Contains(name, tokenB) {
			bSet[path] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性；
	// 去重时“第一个”也因此有了确定含义。
	sort.Strings(aFiles)

	pairs := make([]domain.FilePair, 0, len(aFiles))
	skips := make([]domain.Skip, 0)
	claimed := make(map[string]bool, len(aFiles))

	for _, a := range aFiles {
		if !strings.Contains(a, tokenA) {
			skips = append(skips, domain.Skip{
				Path:   a,
				Reason: domain.ErrCodeTokenNotInPath,
				Msg:    "路径中找不到时间点标记 " + tokenA,
			})
			continue
		}
		derived := strings.ReplaceAll(a, tokenA, tokenB)
		if !bSet[derived] {
			skips = append(skips, domain.Skip{
				Path:   a,
				Reason: domain.ErrCodeCounterpartMissing,
				Msg:    "对应文件不存在：" + derived,
			})
			continue
		}
		if claimed[derived] {
			skips = append(skips, domain.Skip{
				Path:   a,
				Reason: domain.ErrCodeDuplicateTarget,
				Msg:    "目标已被更早的源占用：" + derived,
			})
			continue
		}
		claimed[derived] = true
		pairs = append(pairs, domain.FilePair{PathA: a, PathB: derived})
	}

	return pairs, skips, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
