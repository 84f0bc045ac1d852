// data.go
package processor

import (
	"MarksIntegration/src/config"
	"MarksIntegration/src/datasource/file"
	"MarksIntegration/src/utils"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Summary 一次合并的统计信息
type Summary struct {
	GradebookRows    int
	FeedbackRows     int
	AdjustedRows     int // 使用了调整分的反馈行
	MatchedRows      int
	UnmatchedRows    int
	AssignmentColumn string
	OutputPath       string
	Elapsed          time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("成绩册 %d 行，反馈表 %d 行(调整分 %d 行)，匹配 %d 行，未匹配 %d 行，已写入 %s 列 -> %s (耗时 %v)",
		s.GradebookRows, s.FeedbackRows, s.AdjustedRows, s.MatchedRows, s.UnmatchedRows,
		s.AssignmentColumn, s.OutputPath, s.Elapsed)
}

// GradeProcessor 读取两张表，计算最终分数并写回成绩册
type GradeProcessor struct {
	cfg  *config.Config
	dcfg *config.DataConfig
}

func NewGradeProcessor(cfg *config.Config, dcfg *config.DataConfig) *GradeProcessor {
	return &GradeProcessor{cfg: cfg, dcfg: dcfg}
}

// LoadFeedback 读取反馈表并增加最终分数列
func (p *GradeProcessor) LoadFeedback() (dataframe.DataFrame, int, error) {
	df, err := file.ReadXLSXToDataFrame(p.cfg.FeedbackPath(), p.cfg.FeedbackSheet)
	if err != nil {
		return df, 0, fmt.Errorf("读取反馈表失败: %w", err)
	}

	return AddFinalMark(df, FinalMarkColumns{
		Adjustment: p.dcfg.GetFeedbackColumn(config.KeyAdjustmentMark),
		Feedback:   p.dcfg.GetFeedbackColumn(config.KeyFeedbackMark),
		Final:      p.dcfg.GetFeedbackColumn(config.KeyFinalMark),
	})
}

// LoadGradebook 读取两行表头的成绩册并展开表头
// 返回展开后的原始列名，DataFrame中空列名和重复列名会被gota改写
func (p *GradeProcessor) LoadGradebook() (dataframe.DataFrame, []string, error) {
	sd, err := file.ReadSheet(p.cfg.GradebookPath(), p.cfg.GradebookSheet, 2)
	if err != nil {
		return dataframe.DataFrame{}, nil, fmt.Errorf("读取成绩册失败: %w", err)
	}

	names, err := FlattenHeader(sd.Headers[0], sd.Headers[1])
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	df, err := sd.ToDataFrame(names)
	return df, names, err
}

// Run 执行完整的合并流程
func (p *GradeProcessor) Run() (Summary, error) {
	start := time.Now()

	feedback, adjusted, err := p.LoadFeedback()
	if err != nil {
		return Summary{}, err
	}

	gradebook, header, err := p.LoadGradebook()
	if err != nil {
		return Summary{}, err
	}

	result, err := MergeFinalMarks(gradebook, feedback, MergeColumns{
		FeedbackID:  p.dcfg.GetFeedbackColumn(config.KeyStudentID),
		FinalMark:   p.dcfg.GetFeedbackColumn(config.KeyFinalMark),
		GradebookID: p.dcfg.GetGradebookColumn(config.KeyUniversityID),
		Assignment:  p.dcfg.GetGradebookColumn(config.KeyAssignment),
	})
	if err != nil {
		return Summary{}, err
	}

	if err := utils.SaveToExcelWithHeader(result.Gradebook, header, p.cfg.OutputPath()); err != nil {
		return Summary{}, err
	}

	return Summary{
		GradebookRows:    gradebook.Nrow(),
		FeedbackRows:     feedback.Nrow(),
		AdjustedRows:     adjusted,
		MatchedRows:      result.Matched,
		UnmatchedRows:    result.Unmatched,
		AssignmentColumn: result.AssignmentColumn,
		OutputPath:       p.cfg.OutputPath(),
		Elapsed:          time.Since(start),
	}, nil
}
