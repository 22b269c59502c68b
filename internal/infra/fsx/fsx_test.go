package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicReplace_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicReplace(dir, "a.zip", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.zip"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.zip.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplace_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomicReplace(dir, "a.zip", []byte("hello"))
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.zip.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
		if e.Name() == "a.zip" {
			t.Fatalf("不应写出最终文件：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplace_OverwritesKeepingBackupInode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.zip")

	if err := os.WriteFile(target, []byte("original"), 0o644); err != nil {
		t.Fatalf("写入原始文件失败：%v", err)
	}
	created, err := EnsureBackup(target)
	if err != nil || !created {
		t.Fatalf("期望创建备份，实际 created=%v err=%v", created, err)
	}

	// 覆盖目标后，备份仍持有原始内容（rename 不截断原 inode）。
	if err := WriteFileAtomicReplace(dir, "a.zip", []byte("replaced")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil || string(got) != "replaced" {
		t.Fatalf("目标未被覆盖：%q err=%v", string(got), err)
	}
	bak, err := os.ReadFile(target + ".bak")
	if err != nil || string(bak) != "original" {
		t.Fatalf("备份内容被破坏：%q err=%v", string(bak), err)
	}
}

func TestEnsureBackup_SecondCallKeepsFirstBackup(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.zip")

	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("写入原始文件失败：%v", err)
	}

	created, err := EnsureBackup(target)
	if err != nil || !created {
		t.Fatalf("第一次应创建备份：created=%v err=%v", created, err)
	}

	// 模拟第二次运行：目标已被改写，备份必须保持第一次的原件。
	if err := WriteFileAtomicReplace(dir, "a.zip", []byte("v2")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	created, err = EnsureBackup(target)
	if err != nil {
		t.Fatalf("第二次不期望错误：%v", err)
	}
	if created {
		t.Fatalf("第二次不应重新创建备份")
	}

	bak, err := os.ReadFile(target + ".bak")
	if err != nil || string(bak) != "v1" {
		t.Fatalf("备份应保持最初原件 v1，实际 %q err=%v", string(bak), err)
	}
}

func TestEnsureBackup_MissingSource(t *testing.T) {
	dir := t.TempDir()

	_, err := EnsureBackup(filepath.Join(dir, "nope.zip"))
	if err == nil {
		t.Fatalf("源文件不存在时期望错误，但得到 nil")
	}
}

func TestEnsureBackup_BakIsDirConflict(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.zip")

	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("写入原始文件失败：%v", err)
	}
	// 备份路径被目录占位：应返回 PathTypeConflictError，而不是静默当作已备份。
	if err := os.Mkdir(target+".bak", 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	_, err := EnsureBackup(target)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}
