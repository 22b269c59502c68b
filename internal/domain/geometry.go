package domain

import "math"

// Point 是 2D 坐标点（图像坐标系：x 向右，y 向下）。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance 返回到另一个点的欧氏距离。
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Rect 是矩形编码（left/top/width/height）。
// 解码层负责把 right/bottom 形态换算成 width/height，域内只保留一种形态。
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// GeometryKind 标记 Geometry 的有效分支。
type GeometryKind uint8

const (
	// GeometryNone 表示该 ROI 不携带任何可用的几何编码。
	GeometryNone GeometryKind = iota
	// GeometryPolygon 表示顶点序列（隐式闭合）。
	GeometryPolygon
	// GeometryRect 表示矩形边界。
	GeometryRect
)

// Geometry 是 ROI 几何的 tagged union：Polygon(points) | Rect(l,t,w,h)。
//
// 约束：
// - 在解码时一次性确定分支，后续不再做“鸭子类型”探测
// - 仅用于计算质心；输出永远走原始字节，Geometry 绝不回写
type Geometry struct {
	Kind   GeometryKind
	Points []Point // 仅 GeometryPolygon 有效；绝对坐标，首尾点可以不重复
	Rect   Rect    // 仅 GeometryRect 有效
}
