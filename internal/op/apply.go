package op

// Apply 把一个操作应用到文档内容上，返回新内容。
// 纯函数：不修改入参，不产生副作用；所有失败都来自 Validate 的某条约束。
// 版本推进由调用方负责（服务端应用后 revision+1，客户端以广播为准）。
func Apply(content string, o Operation) (string, error) {
	r := []rune(content)
	if err := o.Validate(len(r)); err != nil {
		return "", err
	}
	switch o.Type {
	case KindInsert:
		return string(r[:o.FromPos]) + o.Content + string(r[o.FromPos:]), nil
	case KindDelete:
		return string(r[:o.FromPos]) + string(r[o.ToPos:]), nil
	case KindReplace:
		return string(r[:o.FromPos]) + o.Content + string(r[o.ToPos:]), nil
	case KindFormat:
		// marks 只影响渲染元数据，文本不变
		return content, nil
	}
	// Validate 已拦截未知类型
	return "", ErrUnsupportedType
}
