package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

const suffix = "_rois.zip"

func TestFindPairs_SinglePair(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "foo_t00_rois.zip"))
	touch(t, filepath.Join(root, "foo_t03_rois.zip"))

	pairs, skips, err := FindPairs(root, "t00", "t03", suffix, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("期望 1 对，实际 %d", len(pairs))
	}
	if len(skips) != 0 {
		t.Fatalf("不期望跳过：%v", skips)
	}
	if pairs[0].PathA != filepath.Join(root, "foo_t00_rois.zip") ||
		pairs[0].PathB != filepath.Join(root, "foo_t03_rois.zip") {
		t.Fatalf("配对路径错误：%+v", pairs[0])
	}
}

func TestFindPairs_CounterpartMissing(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "foo_t00_rois.zip"))

	pairs, skips, err := FindPairs(root, "t00", "t03", suffix, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("期望 0 对，实际 %d", len(pairs))
	}
	// 对应文件缺失是非致命警告，必须出现在跳过列表里。
	if len(skips) != 1 || skips[0].Reason != domain.ErrCodeCounterpartMissing {
		t.Fatalf("期望 counterpart_missing 跳过，实际 %v", skips)
	}
}

func TestFindPairs_NestedAndSorted(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "b", "s2_t00_rois.zip"))
	touch(t, filepath.Join(root, "b", "s2_t03_rois.zip"))
	touch(t, filepath.Join(root, "a", "s1_t00_rois.zip"))
	touch(t, filepath.Join(root, "a", "s1_t03_rois.zip"))
	// 后缀不匹配的文件不参与配对。
	touch(t, filepath.Join(root, "a", "s1_t00_mask.zip"))

	pairs, _, err := FindPairs(root, "t00", "t03", suffix, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("期望 2 对，实际 %d", len(pairs))
	}
	if pairs[0].PathA != filepath.Join(root, "a", "s1_t00_rois.zip") {
		t.Fatalf("输出应按 PathA 排序，实际第一项 %q", pairs[0].PathA)
	}
}

// 路径目录名里也带 token 时，完整路径的每处出现都要替换。
func TestFindPairs_TokenInDirectory(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "t00", "foo_t00_rois.zip"))
	touch(t, filepath.Join(root, "t03", "foo_t03_rois.zip"))

	pairs, _, err := FindPairs(root, "t00", "t03", suffix, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("期望 1 对，实际 %d", len(pairs))
	}
	if pairs[0].PathB != filepath.Join(root, "t03", "foo_t03_rois.zip") {
		t.Fatalf("目录中的 token 未被替换：%q", pairs[0].PathB)
	}
}

func TestFindPairs_DuplicateTarget(t *testing.T) {
	root := t.TempDir()

	// 两个源文件名都包含 t00，替换后指向同一目标。
	touch(t, filepath.Join(root, "x_t00_t00_rois.zip"))
	touch(t, filepath.Join(root, "x_t00_t03_rois.zip"))
	touch(t, filepath.Join(root, "x_t03_t03_rois.zip"))

	pairs, skips, err := FindPairs(root, "t00", "t03", suffix, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("同一目标只允许配对一次，实际 %d 对", len(pairs))
	}
	// 路径序最小的源胜出，其余记 duplicate_target。
	if pairs[0].PathA != filepath.Join(root, "x_t00_t00_rois.zip") {
		t.Fatalf("应保留路径序最小的源，实际 %q", pairs[0].PathA)
	}
	foundDup := false
	for _, s := range skips {
		if s.Reason == domain.ErrCodeDuplicateTarget {
			foundDup = true
		}
	}
	if !foundDup {
		t.Fatalf("期望 duplicate_target 跳过，实际 %v", skips)
	}
}

func TestFindPairs_ExcludeDirs(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "skipme", "foo_t00_rois.zip"))
	touch(t, filepath.Join(root, "skipme", "foo_t03_rois.zip"))
	touch(t, filepath.Join(root, "keep", "bar_t00_rois.zip"))
	touch(t, filepath.Join(root, "keep", "bar_t03_rois.zip"))

	pairs, _, err := FindPairs(root, "t00", "t03", suffix, []string{"skipme"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("期望 1 对，实际 %d", len(pairs))
	}
	if pairs[0].PathA != filepath.Join(root, "keep", "bar_t00_rois.zip") {
		t.Fatalf("排除目录未生效：%q", pairs[0].PathA)
	}
}

func TestFindPairs_MissingRoot(t *testing.T) {
	_, _, err := FindPairs(filepath.Join(t.TempDir(), "nope"), "t00", "t03", suffix, nil)
	if err == nil {
		t.Fatalf("root 不存在时期望错误，但得到 nil")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
