package domain

// FilePair 是一次追踪任务的输入：pathB 由 pathA 做 timepoint token
// 字面替换推导得到。
type FilePair struct {
	PathA string
	PathB string
}

// Skip 描述发现阶段被跳过的候选文件（非致命，只进报告）。
type Skip struct {
	Path   string // 触发跳过的 tokenA 文件
	Reason string // 稳定 reason code（counterpart_missing 等）
	Msg    string
}
