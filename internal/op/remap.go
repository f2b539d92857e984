package op

// Remap 把一个光标/选区偏移映射过一次已应用的操作，
// 使它继续指向同一个逻辑字符（或被删除时最近的合理边界）。
// 文档每应用一个操作（无论本地还是远端），所有被跟踪的位置都必须按同一顺序 Remap，
// 否则位置和文本会发散。
func Remap(pos int, o Operation) int {
	switch o.Type {
	case KindFormat:
		// 不移动文本
		return pos

	case KindInsert:
		if o.FromPos > pos {
			return pos
		}
		// 恰好插在光标处视为插在光标前，光标跟随插入文本后移
		return pos + o.ContentLen()

	case KindDelete:
		if o.FromPos >= pos {
			return pos
		}
		if o.ToPos <= pos {
			return pos - (o.ToPos - o.FromPos)
		}
		// 位置落在被删区间内部，坍缩到删除点
		return o.FromPos

	case KindReplace:
		if o.FromPos >= pos {
			return pos
		}
		diff := o.ContentLen() - (o.ToPos - o.FromPos)
		if o.ToPos <= pos {
			return pos + diff
		}
		// 位置落在被替换区间内部，落到替换文本末尾
		return o.FromPos + o.ContentLen()
	}
	return pos
}
