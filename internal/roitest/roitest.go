package roitest

import (
	"archive/zip"
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

// 本包只给测试用：生产代码从不编码 ROI 字节（Raw 原样回写），
// 构造合法条目字节的能力因此集中在这里。

const version = 228

// EncodePolygon 生成 int16 坐标编码的多边形条目（坐标四舍五入取整）。
func EncodePolygon(pts []domain.Point) []byte {
	n := len(pts)
	xs := make([]int, n)
	ys := make([]int, n)
	for i, p := range pts {
		xs[i] = int(math.Round(p.X))
		ys[i] = int(math.Round(p.Y))
	}
	left, top := xs[0], ys[0]
	right, bottom := xs[0], ys[0]
	for i := 1; i < n; i++ {
		if xs[i] < left {
			left = xs[i]
		}
		if xs[i] > right {
			right = xs[i]
		}
		if ys[i] < top {
			top = ys[i]
		}
		if ys[i] > bottom {
			bottom = ys[i]
		}
	}

	b := newHeader(0, top, left, bottom, right, n, 0)
	b = append(b, make([]byte, 4*n)...)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint16(b[64+2*i:], uint16(int16(xs[i]-left)))
		binary.BigEndian.PutUint16(b[64+2*n+2*i:], uint16(int16(ys[i]-top)))
	}
	return b
}

// EncodePolygonSubPixel 生成亚像素（float32 绝对坐标）编码的多边形条目。
// int16 坐标区仍按格式要求占位（取整后的相对坐标）。
func EncodePolygonSubPixel(pts []domain.Point) []byte {
	b := EncodePolygon(pts)
	binary.BigEndian.PutUint16(b[50:], 128) // SUB_PIXEL_RESOLUTION

	n := len(pts)
	fl := make([]byte, 8*n)
	for i, p := range pts {
		binary.BigEndian.PutUint32(fl[4*i:], math.Float32bits(float32(p.X)))
		binary.BigEndian.PutUint32(fl[4*n+4*i:], math.Float32bits(float32(p.Y)))
	}
	return append(b, fl...)
}

// EncodeRect 生成无坐标区的矩形条目（bounds 编码 left/top/right/bottom）。
func EncodeRect(left, top, width, height int) []byte {
	return newHeader(1, top, left, top+height, left+width, 0, 0)
}

// EncodeNoROI 生成 noRoi 占位条目（无几何，质心计算应失败）。
func EncodeNoROI() []byte {
	return newHeader(6, 0, 0, 0, 0, 0, 0)
}

func newHeader(roiType byte, top, left, bottom, right, n int, options uint16) []byte {
	b := make([]byte, 64)
	copy(b[0:4], "Iout")
	binary.BigEndian.PutUint16(b[4:], version)
	b[6] = roiType
	binary.BigEndian.PutUint16(b[8:], uint16(int16(top)))
	binary.BigEndian.PutUint16(b[10:], uint16(int16(left)))
	binary.BigEndian.PutUint16(b[12:], uint16(int16(bottom)))
	binary.BigEndian.PutUint16(b[14:], uint16(int16(right)))
	binary.BigEndian.PutUint16(b[16:], uint16(n))
	binary.BigEndian.PutUint16(b[50:], options)
	return b
}

type Entry struct {
	Name string
	Data []byte
}

// WriteArchive 把条目按给定顺序写成 zip 文件。
func WriteArchive(t *testing.T, path string, entries []Entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("创建测试归档失败：%v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("创建测试条目失败：%v", err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("写入测试条目失败：%v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭测试归档失败：%v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("关闭测试文件失败：%v", err)
	}
}

// TriangleAt 生成以 (cx,cy) 为中心的小三角形顶点，便于构造可预期质心。
func TriangleAt(cx, cy float64) []domain.Point {
	return []domain.Point{
		{X: cx - 3, Y: cy - 2},
		{X: cx + 3, Y: cy - 2},
		{X: cx, Y: cy + 4},
	}
}
