//go:build unix

package fsx

import (
	"os"
	"syscall"
	"testing"
)

func TestRename_CrossDeviceEXDEV(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
}

func TestEnsureBackup_LinkEEXISTMeansAlreadyBackedUp(t *testing.T) {
	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EEXIST}
	}
	defer func() { linkFunc = old }()

	// EEXIST 是并发竞争的正常分支：另一 worker 刚创建了备份。
	created, err := EnsureBackup("/data/a.zip")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if created {
		t.Fatalf("EEXIST 不应报告为新创建")
	}
}

func TestEnsureBackup_LinkHardFailure(t *testing.T) {
	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EACCES}
	}
	defer func() { linkFunc = old }()

	_, err := EnsureBackup("/data/a.zip")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
