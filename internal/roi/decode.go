package roi

import (
	"encoding/binary"
	"math"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

// ImageJ .roi 二进制布局（big-endian，头部固定 64 字节）。
// 只读取几何所需的字段；其余字节对本系统不可见，原样回写。
const (
	headerSize = 64

	offVersion = 4
	offType    = 6
	offTop     = 8
	offLeft    = 10
	offBottom  = 12
	offRight   = 14
	offNCoords = 16
	offOptions = 50
)

const magic = "Iout"

// 亚像素坐标：options 位 128，且 version >= 222 时，
// 整型坐标区之后跟随 float32 绝对坐标（先 x 后 y）。
const (
	optSubPixel     = 128
	subPixelVersion = 222
)

// roi 类型字节。只有 noRoi 需要特判（无几何）；
// 其余类型统一按“有坐标则多边形，否则外接矩形”解析。
const typeNoROI = 6

// DecodeError 表示单个条目的字节不构成合法 ROI。
// 容器层把它并入 *roizip.ReadError（error_code=archive_read_failed）。
type DecodeError struct {
	Name   string
	Reason string
}

func (e *DecodeError) Error() string {
	return "ROI 条目解码失败（" + e.Name + "）：" + e.Reason
}

// Decode 从条目字节解出几何。Raw 保留原始字节切片本身，绝不重编码。
// 几何解析规则：noRoi → 无几何；有坐标 → 多边形（绝对坐标）；
// 无坐标 → 外接矩形。宽高在此处一次性由 right/bottom 推导，
// 下游只见一种矩形编码。
func Decode(name string, b []byte) (domain.ROIRecord, error) {
	if len(b) < headerSize {
		return domain.ROIRecord{}, &DecodeError{Name: name, Reason: "长度不足 64 字节头部"}
	}
	if string(b[0:4]) != magic {
		return domain.ROIRecord{}, &DecodeError{Name: name, Reason: "magic 不是 Iout"}
	}

	version := int(int16(binary.BigEndian.Uint16(b[offVersion:])))
	roiType := b[offType]
	top := float64(int16(binary.BigEndian.Uint16(b[offTop:])))
	left := float64(int16(binary.BigEndian.Uint16(b[offLeft:])))
	bottom := float64(int16(binary.BigEndian.Uint16(b[offBottom:])))
	right := float64(int16(binary.BigEndian.Uint16(b[offRight:])))
	n := int(binary.BigEndian.Uint16(b[offNCoords:]))
	options := binary.BigEndian.Uint16(b[offOptions:])

	rec := domain.ROIRecord{Name: name, Raw: b}

	if roiType == typeNoROI {
		rec.Geometry = domain.Geometry{Kind: domain.GeometryNone}
		return rec, nil
	}

	if n == 0 {
		rec.Geometry = domain.Geometry{
			Kind: domain.GeometryRect,
			Rect: domain.Rect{
				Left:   left,
				Top:    top,
				Width:  right - left,
				Height: bottom - top,
			},
		}
		return rec, nil
	}

	subPixel := options&optSubPixel != 0 && version >= subPixelVersion

	need := headerSize + 4*n
	if subPixel {
		need += 8 * n
	}
	if len(b) < need {
		return domain.ROIRecord{}, &DecodeError{Name: name, Reason: "坐标区越过条目末尾"}
	}

	pts := make([]domain.Point, n)
	if subPixel {
		// float32 绝对坐标，紧跟在两段 int16 坐标之后。
		base := headerSize + 4*n
		for i := 0; i < n; i++ {
			x := math.Float32frombits(binary.BigEndian.Uint32(b[base+4*i:]))
			y := math.Float32frombits(binary.BigEndian.Uint32(b[base+4*n+4*i:]))
			pts[i] = domain.Point{X: float64(x), Y: float64(y)}
		}
	} else {
		// int16 坐标相对外接框左上角，这里换算成绝对坐标。
		for i := 0; i < n; i++ {
			x := int16(binary.BigEndian.Uint16(b[headerSize+2*i:]))
			y := int16(binary.BigEndian.Uint16(b[headerSize+2*n+2*i:]))
			pts[i] = domain.Point{X: left + float64(x), Y: top + float64(y)}
		}
	}

	rec.Geometry = domain.Geometry{Kind: domain.GeometryPolygon, Points: pts}
	return rec, nil
}
