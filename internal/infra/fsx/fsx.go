package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV、EEXIST 等错误。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层可把它映射为 error_code=backup_failed / write_failed。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 按产品契约：遇到 EXDEV 必须失败并提示用户，不做 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q；请确保源与目标在同一文件系统（本工具不会隐式 copy+delete）：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureBackup 确保 path 存在名为 path+".bak" 的备份。
//
// 实现是硬链接的独占创建：
//   - 链接成功 → 本次运行固定了原件，返回 (true, nil)
//   - EEXIST → 更早的运行已固定原件，备份保持不动，返回 (false, nil)
//
// 独占创建在内核侧原子完成，多个 worker 并发触达同一目标时
// 至多一个成功，备份不变量在并发下仍然成立。
// 后续对 path 的覆盖必须走 WriteFileAtomicReplace（rename 替换目录项，
// 不截断原 inode），.bak 因此在任意多次重跑后仍指向真正的原件。
func EnsureBackup(path string) (bool, error) {
	bak := path + ".bak"
	if err := linkFunc(path, bak); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if fi, lerr := os.Lstat(bak); lerr == nil && fi.IsDir() {
				return false, &PathTypeConflictError{Path: bak, Want: "file", Got: "dir"}
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），
// 目标已存在则覆盖。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - fsync 是可选但推荐：我们对临时文件做 Sync；目录 Sync 采用 best-effort（避免平台差异导致误报失败）
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，避免污染数据目录视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		// Windows 下 chmod 可能不完全支持，但失败通常不影响正确性；为了简单，仍当作错误返回。
		// 若未来需要更强兼容性，可把该错误降级为 warning。
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// rename 原子替换到最终文件名。
	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)

	// rename 成功后，不应删除最终文件。
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
