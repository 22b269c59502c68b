package domain

// ROIRecord 是归档中的一条 ROI。
//
// 不变量（实现必须遵守）：
// - Raw 是输出的唯一事实来源：读入后不可变，不重编码，只允许整体换序
// - Geometry 是只读派生数据，仅供匹配使用
type ROIRecord struct {
	Name     string // 归档条目名（同一归档内唯一）
	Geometry Geometry
	Raw      []byte
}

// ROISet 是按归档迭代顺序排列的 ROIRecord 序列。
// 顺序只作为稳定 tie-break，不携带业务语义。
type ROISet []ROIRecord
