package roizip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
	"github.com/marcusjoshm/percell-sub001/internal/infra/fsx"
	"github.com/marcusjoshm/percell-sub001/internal/roi"
)

// ReadError 表示归档不可用：文件缺失、容器损坏，或条目解码失败。
// 上层把它映射为 error_code=archive_read_failed。
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("读取 ROI 归档失败（%q）：%v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

type LoadOptions struct {
	// SkipBadEntries 为 true 时，解码失败的条目计数后丢弃，不判归档失败。
	// 被丢弃的条目不会出现在重写后的归档里。
	SkipBadEntries bool
}

// LoadDecoded 按归档迭代顺序解码全部条目。
// 返回值第二项是被跳过的坏条目数（仅在 SkipBadEntries 下非零）。
// Raw 持有条目原始字节，输出阶段只做整体换序，绝不重编码。
func LoadDecoded(path string, opts LoadOptions) (domain.ROISet, int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, 0, &ReadError{Path: path, Err: err}
	}
	defer zr.Close()

	set := make(domain.ROISet, 0, len(zr.File))
	skipped := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, 0, &ReadError{Path: path, Err: fmt.Errorf("条目 %q：%w", f.Name, err)}
		}
		rec, err := roi.Decode(f.Name, data)
		if err != nil {
			if opts.SkipBadEntries {
				skipped++
				continue
			}
			return nil, 0, &ReadError{Path: path, Err: err}
		}
		set = append(set, rec)
	}
	return set, skipped, nil
}

// LoadRawBytes 返回按条目名索引的原始字节视图，与 LoadDecoded 共用同一命名，
// 便于两种视图间关联。条目名重复视为容器错误。
func LoadRawBytes(path string) (map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, dup := out[f.Name]; dup {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("重复条目名：%q", f.Name)}
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("条目 %q：%w", f.Name, err)}
		}
		out[f.Name] = data
	}
	return out, nil
}

// WriteReordered 把字节块按给定顺序写成新归档，条目名取零填充序号
// （0001.roi 起），原条目名刻意丢弃：下游按顺序消费。
// 先在内存组装，再经 fsx 原子替换落盘，中途失败不会留下半成品。
func WriteReordered(blobs [][]byte, path string) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, b := range blobs {
		w, err := zw.Create(fmt.Sprintf("%04d.roi", i+1))
		if err != nil {
			return fmt.Errorf("组装归档条目失败：%w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("组装归档条目失败：%w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("组装归档失败：%w", err)
	}

	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), buf.Bytes())
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
