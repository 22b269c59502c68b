package match

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/marcusjoshm/percell-sub001/internal/domain"
)

// InputError 表示有一侧（或两侧）质心集合为空，无法建立匹配。
// 上层把它映射为 error_code=assignment_input_empty。
type InputError struct {
	LenA int
	LenB int
}

func (e *InputError) Error() string {
	return "质心集合为空，无法匹配"
}

// Match 求两组质心间总位移最小的一一对应。
// n = min(|a|,|b|)，两侧截断到 n 后求精确最优解（匈牙利算法，O(n³)），
// 不允许贪心近邻：贪心会产生交叉的次优全局匹配。
//
// |b| > n 时，下标 n..|b|-1 按原始顺序追加在匹配前缀之后；
// |a| > n 时，被截掉的 A 侧数量通过 DroppedA 显式上报。
// 纯函数：无随机性，迭代顺序固定，相同输入必得相同输出。
func Match(a, b []domain.Point) (domain.Assignment, error) {
	if len(a) == 0 || len(b) == 0 {
		return domain.Assignment{}, &InputError{LenA: len(a), LenB: len(b)}
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	cost := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cost.Set(i, j, a[i].Distance(b[j]))
		}
	}

	rowToCol := solve(cost)

	order := make([]int, 0, len(b))
	order = append(order, rowToCol...)
	for j := n; j < len(b); j++ {
		order = append(order, j)
	}

	var total float64
	for i := 0; i < n; i++ {
		total += cost.At(i, rowToCol[i])
	}

	return domain.Assignment{
		Order:     order,
		Matched:   n,
		DroppedA:  len(a) - n,
		TotalCost: total,
	}, nil
}

// solve 对 n×n 代价矩阵求最小总代价的完美匹配，返回每行分到的列。
// 实现是带行列位势与最短增广路的匈牙利算法（Jonker-Volgenant 一族）。
// 内部数组取 1 起始下标，0 号位充当虚拟哨兵行/列。
func solve(cost *mat.Dense) []int {
	n, _ := cost.Dims()

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)   // p[j]：当前占据列 j 的行（0 表示空闲）
	way := make([]int, n+1) // way[j]：增广路径上列 j 的前驱列

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		// 从行 i 出发找最短增广路，途中维护位势可行性。
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost.At(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// 沿前驱链回溯，翻转路径上的匹配边。
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for j := 1; j <= n; j++ {
		rowToCol[p[j]-1] = j - 1
	}
	return rowToCol
}
