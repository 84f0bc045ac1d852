package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// SaveToExcel 将DataFrame保存为Excel文件，单行表头，不写行索引，缺失值留空
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	return SaveToExcelWithHeader(df, df.Names(), filePath)
}

// SaveToExcelWithHeader 同SaveToExcel，表头使用header而不是DataFrame的列名
// gota会把空列名改成X0、重复列名加后缀，用它写回原始表头
func SaveToExcelWithHeader(df dataframe.DataFrame, header []string, filePath string) error {
	if df.Err != nil {
		return df.Err
	}
	if len(header) != df.Ncol() {
		return fmt.Errorf("表头数量 %d 与列数 %d 不一致", len(header), df.Ncol())
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	// 写入列名，空列名不写
	colNames := df.Names()
	for i, name := range header {
		if name == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			val, ok := CellValue(col.Elem(rowIdx))
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// CellValue 把单元格内容转换为写入Excel的值，缺失或空白返回false
// 数字文本写为数字，以0开头的编号和超过15位的整数保持文本
func CellValue(e series.Element) (interface{}, bool) {
	if e.IsNA() {
		return nil, false
	}
	switch e.Type() {
	case series.Float, series.Int:
		return e.Float(), true
	case series.Bool:
		b, err := e.Bool()
		if err != nil {
			return nil, false
		}
		return b, true
	}

	s := e.String()
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	if looksNumeric(s) && !longInteger(s) {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return s, true
}

func looksNumeric(s string) bool {
	if s != strings.TrimSpace(s) {
		return false
	}
	digits := strings.TrimPrefix(s, "-")
	if digits == "" || !(digits[0] >= '0' && digits[0] <= '9' || digits[0] == '.') {
		return false
	}
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return false
	}
	return true
}

// maxExactDigits Excel数字只保留15位有效数字
const maxExactDigits = 15

// longInteger 超过15位的整数写成数字会丢失精度
func longInteger(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if len(digits) <= maxExactDigits {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
