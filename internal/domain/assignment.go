package domain

// Assignment 是求解结果：Order 的前 Matched 项是与 A[0..Matched) 逐位对齐的
// B 下标（双射），其后是未参与匹配的 B 尾部下标（保持原始相对顺序）。
//
// 约束：
// - len(Order) == len(B)（B 的字节一条不丢，只换序）
// - |A| > |B| 时多出的 A 侧 ROI 不进 Order，但必须通过 DroppedA 显式上报
type Assignment struct {
	Order    []int
	Matched  int
	DroppedA int

	// TotalCost 是匹配前缀的位移总和（欧氏距离），用于报告与回归断言。
	TotalCost float64
}
