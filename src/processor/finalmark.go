package processor

import (
	"MarksIntegration/src/utils"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Mark 一个可能缺失的分数
type Mark struct {
	Value float64
	Valid bool
}

// missingTokens 表格中表示缺失值的写法，包括Excel的#N/A错误值
var missingTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsMissing 单元格内容是否表示缺失值，忽略首尾空白
func IsMissing(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

// ParseMark 解析单元格内容，空白、"NaN"、"N/A"等缺失值写法视为缺失
func ParseMark(s string) (Mark, error) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return Mark{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Mark{}, fmt.Errorf("无法解析分数 %q", s)
	}
	return Mark{Value: v, Valid: true}, nil
}

// DeriveFinalMark 有调整分时取调整分，否则取反馈分，两者都缺失时结果缺失
func DeriveFinalMark(adjustment, feedback Mark) Mark {
	if adjustment.Valid {
		return adjustment
	}
	return feedback
}

// String 缺失时返回"NaN"，便于构造gota的Float列
func (m Mark) String() string {
	if !m.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// FinalMarkColumns 反馈表中参与计算的列名
type FinalMarkColumns struct {
	Adjustment string
	Feedback   string
	Final      string
}

// AddFinalMark 为反馈表增加最终分数列，返回新表和使用了调整分的行数
func AddFinalMark(df dataframe.DataFrame, cols FinalMarkColumns) (dataframe.DataFrame, int, error) {
	adjustment, err := column(df, cols.Adjustment)
	if err != nil {
		return df, 0, err
	}
	feedback, err := column(df, cols.Feedback)
	if err != nil {
		return df, 0, err
	}

	finals := make([]string, df.Nrow())
	adjusted := 0
	for i := 0; i < df.Nrow(); i++ {
		adj, err := ParseMark(elemString(adjustment.Elem(i)))
		if err != nil {
			return df, 0, fmt.Errorf("第 %d 行 %s: %w", i+1, cols.Adjustment, err)
		}
		fb, err := ParseMark(elemString(feedback.Elem(i)))
		if err != nil {
			return df, 0, fmt.Errorf("第 %d 行 %s: %w", i+1, cols.Feedback, err)
		}
		if adj.Valid {
			adjusted++
		}
		finals[i] = DeriveFinalMark(adj, fb).String()
	}

	out := df.Mutate(series.New(finals, series.Float, cols.Final))
	if out.Err != nil {
		return df, 0, fmt.Errorf("添加 %s 列失败: %w", cols.Final, out.Err)
	}
	return out, adjusted, nil
}

func column(df dataframe.DataFrame, name string) (series.Series, error) {
	if !utils.HasColumn(df, name) {
		return series.Series{}, fmt.Errorf("缺少列 %q", name)
	}
	return df.Col(name), nil
}

// elemString 缺失值统一返回空字符串
func elemString(e series.Element) string {
	if e.IsNA() {
		return ""
	}
	return e.String()
}
