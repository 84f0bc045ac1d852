package processor

import (
	"MarksIntegration/src/utils"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MergeColumns 合并时使用的列名
type MergeColumns struct {
	FeedbackID  string // 反馈表中的学号列
	FinalMark   string // 反馈表中的最终分数列
	GradebookID string // 成绩册学号列关键字，同时作为连接键
	Assignment  string // 成绩册作业列关键字
}

// MergeResult 合并结果
type MergeResult struct {
	Gradebook        dataframe.DataFrame
	AssignmentColumn string // 被覆盖的成绩册列(展开后的原列名)
	Matched          int    // 在反馈表中找到学号的行数
	Unmatched        int
}

// MergeFinalMarks 按学号左连接，把最终分数整列写入成绩册的作业列
// 学号精确匹配，不做类型和空白处理；未匹配的行得到缺失值
func MergeFinalMarks(gradebook, feedback dataframe.DataFrame, cols MergeColumns) (MergeResult, error) {
	ids, _, err := ResolveColumn(gradebook, cols.GradebookID)
	if err != nil {
		return MergeResult{}, err
	}
	_, assignmentName, err := ResolveColumn(gradebook, cols.Assignment)
	if err != nil {
		return MergeResult{}, err
	}

	for _, name := range []string{cols.FeedbackID, cols.FinalMark} {
		if !utils.HasColumn(feedback, name) {
			return MergeResult{}, fmt.Errorf("反馈表缺少列 %q", name)
		}
	}

	// 1. 反馈表只保留学号和最终分数，学号列改名为连接键
	right := feedback.Select([]string{cols.FeedbackID, cols.FinalMark})
	if cols.FeedbackID != cols.GradebookID {
		right = right.Rename(cols.GradebookID, cols.FeedbackID)
	}
	if right.Err != nil {
		return MergeResult{}, right.Err
	}

	// 2. 左连接，保持成绩册行顺序；学号缺失的反馈行不参与连接
	marks, err := joinMarks(ids, right, cols.GradebookID, cols.FinalMark)
	if err != nil {
		return MergeResult{}, err
	}

	// 3. 覆盖作业列，重复学号会使行数变化
	if marks.Len() != gradebook.Nrow() {
		return MergeResult{}, fmt.Errorf("合并后行数 %d 与成绩册行数 %d 不一致，学号可能重复", marks.Len(), gradebook.Nrow())
	}
	marks.Name = assignmentName
	out := gradebook.Mutate(marks)
	if out.Err != nil {
		return MergeResult{}, fmt.Errorf("覆盖 %s 列失败: %w", assignmentName, out.Err)
	}

	matched := countMatched(ids.Col(cols.GradebookID).Records(), feedback.Col(cols.FeedbackID).Records())
	return MergeResult{
		Gradebook:        out,
		AssignmentColumn: assignmentName,
		Matched:          matched,
		Unmatched:        gradebook.Nrow() - matched,
	}, nil
}

// joinMarks 返回与ids逐行对应的最终分数列，未匹配的行为缺失值
func joinMarks(ids, right dataframe.DataFrame, key, finalMark string) (series.Series, error) {
	var keep []int
	for i, id := range right.Col(key).Records() {
		if !IsMissing(id) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		empty := make([]string, ids.Nrow())
		for i := range empty {
			empty[i] = "NaN"
		}
		return series.New(empty, series.Float, finalMark), nil
	}
	if len(keep) < right.Nrow() {
		right = right.Subset(keep)
		if right.Err != nil {
			return series.Series{}, right.Err
		}
	}

	merged := ids.LeftJoin(right, key)
	if merged.Err != nil {
		return series.Series{}, fmt.Errorf("按 %s 合并失败: %w", key, merged.Err)
	}
	return merged.Col(finalMark).Copy(), nil
}

func countMatched(ids, feedbackIDs []string) int {
	known := make(map[string]bool, len(feedbackIDs))
	for _, id := range feedbackIDs {
		if !IsMissing(id) {
			known[id] = true
		}
	}
	n := 0
	for _, id := range ids {
		if known[id] {
			n++
		}
	}
	return n
}
