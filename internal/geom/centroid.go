package geom

import (
	"math"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

// 面积低于该阈值视为退化多边形（共线或重合点），改用顶点算术平均。
const degenerateArea = 1e-8

// Error 表示几何数据不足以计算质心（既无顶点也无外接矩形）。
// 上层把它映射为 error_code=geometry_invalid。
type Error struct {
	Kind domain.GeometryKind
}

func (e *Error) Error() string {
	return "几何数据无效，无法计算质心"
}

// Centroid 计算单个 ROI 几何的质心。
// 多边形用鞋带公式（signed area）；首尾顶点不重合时按隐式闭合处理。
// 退化多边形（|面积| < 1e-8）退回到顶点算术平均。
// 矩形取中心点。两种编码都没有时返回 *Error。
func Centroid(g domain.Geometry) (domain.Point, error) {
	switch g.Kind {
	case domain.GeometryPolygon:
		return polygonCentroid(g.Points), nil
	case domain.GeometryRect:
		r := g.Rect
		return domain.Point{
			X: r.Left + r.Width/2,
			Y: r.Top + r.Height/2,
		}, nil
	default:
		return domain.Point{}, &Error{Kind: g.Kind}
	}
}

func polygonCentroid(pts []domain.Point) domain.Point {
	n := len(pts)
	if n == 1 {
		return pts[0]
	}

	// 鞋带公式按环遍历：下标 n-1 的后继是 0，等价于补上闭合点。
	// 若输入已显式闭合（首尾重合），最后一段 cross 为零，不影响结果。
	var area, cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
		area += cross
		cx += (pts[i].X + pts[j].X) * cross
		cy += (pts[i].Y + pts[j].Y) * cross
	}
	area /= 2

	if math.Abs(area) < degenerateArea {
		return vertexMean(pts)
	}
	return domain.Point{X: cx / (6 * area), Y: cy / (6 * area)}
}

// vertexMean 对原始顶点列表取算术平均（不去重闭合点，按给定列表计算）。
func vertexMean(pts []domain.Point) domain.Point {
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return domain.Point{X: sx / n, Y: sy / n}
}
