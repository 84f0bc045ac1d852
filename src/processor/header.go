package processor

import (
	"fmt"
	"strings"
)

// FlattenHeader 将两行表头合并为单行列名
// 上层为空的单元格沿用左侧最近的上层标题(合并单元格只有左上角有值)
func FlattenHeader(top, sub []string) ([]string, error) {
	if len(top) != len(sub) {
		return nil, fmt.Errorf("两行表头长度不一致: %d != %d", len(top), len(sub))
	}

	names := make([]string, len(top))
	group := ""
	for i := range top {
		if t := strings.TrimSpace(top[i]); t != "" {
			group = top[i]
		}
		names[i] = strings.TrimSpace(strings.Join([]string{group, sub[i]}, " "))
	}
	return names, nil
}
