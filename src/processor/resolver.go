package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// MatchColumns 返回列名中包含keyword的列
func MatchColumns(names []string, keyword string) []string {
	var matched []string
	for _, name := range names {
		if strings.Contains(name, keyword) {
			matched = append(matched, name)
		}
	}
	return matched
}

// ResolveColumn 按关键字定位唯一的一列，返回只含该列的DataFrame(列名改为keyword)和原列名
// 匹配到0列或多列时返回列数不匹配错误
func ResolveColumn(df dataframe.DataFrame, keyword string) (dataframe.DataFrame, string, error) {
	matched := MatchColumns(df.Names(), keyword)
	if len(matched) != 1 {
		return dataframe.DataFrame{}, "", fmt.Errorf("列 %q 数量不匹配: 期望 1 列, 实际 %d 列 %q", keyword, len(matched), matched)
	}

	col := df.Select([]string{matched[0]})
	if col.Err != nil {
		return dataframe.DataFrame{}, "", col.Err
	}
	if matched[0] != keyword {
		col = col.Rename(keyword, matched[0])
		if col.Err != nil {
			return dataframe.DataFrame{}, "", col.Err
		}
	}
	return col, matched[0], nil
}
