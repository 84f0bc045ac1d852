package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// 运行模式
const (
	ModeOnce     = "once"     // 执行一次后退出
	ModeWatch    = "watch"    // 监听反馈表变化后重新合并
	ModeSchedule = "schedule" // 按检查间隔定时合并
)

// DefaultBaseDir 存放反馈表和成绩册的目录
const DefaultBaseDir = "./CS429"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	BaseDir        string   `json:"base_dir"`        // 表格所在目录
	FeedbackFile   string   `json:"feedback_file"`   // 反馈表文件名
	FeedbackSheet  string   `json:"feedback_sheet"`  // 为空时读取第一个工作表
	GradebookFile  string   `json:"gradebook_file"`  // 成绩册文件名
	GradebookSheet string   `json:"gradebook_sheet"` // 为空时读取第一个工作表
	OutputFile     string   `json:"output_file"`     // 输出文件名
	Mode           string   `json:"mode"`            // once / watch / schedule
	CheckInterval  Duration `json:"check_interval"`  // schedule 模式的执行间隔
	LogName        string   `json:"log_name"`
	LogMaxSize     string   `json:"log_max_size"` // 例如 "10 * 1024 * 1024"
	LogLevel       string   `json:"log_level"`    // DEBUG / INFO / WARNING / ERROR

	Email struct {
		Enabled       bool   `json:"enabled"`
		Server        string `json:"server"`         // 邮件服务器地址
		Username      string `json:"username"`       // 邮箱用户名
		Password      string `json:"password"`       // 邮箱密码
		TargetSubject string `json:"target_subject"` // 需要匹配的邮件主题
	} `json:"email"`

	SendEmail struct {
		Enabled  bool     `json:"enabled"`
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"`
		To       []string `json:"to"`      // 收件人列表
		Subject  string   `json:"subject"` // 邮件主题
	} `json:"send_email"`

	Push struct {
		Enabled    bool   `json:"enabled"`
		WebhookURL string `json:"webhook_url"` // 机器人webhook地址
	} `json:"push"`
}

// DataConfig 表格列名配置
type DataConfig struct {
	Feedback  map[string]string `json:"feedback"`  // 反馈表列名
	Gradebook map[string]string `json:"gradebook"` // 成绩册列名匹配关键字
}

// 列名配置项的键
const (
	KeyStudentID      = "student_id"
	KeyAdjustmentMark = "adjustment_mark"
	KeyFeedbackMark   = "feedback_mark"
	KeyFinalMark      = "final_mark"
	KeyUniversityID   = "university_id"
	KeyAssignment     = "assignment"
)

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// DefaultConfig 返回只依赖硬编码目录的默认配置
func DefaultConfig() *Config {
	cfg := &Config{
		BaseDir:       DefaultBaseDir,
		FeedbackFile:  "CS429-Assignment-2.xlsx",
		GradebookFile: "CS429-15.xlsx",
		OutputFile:    "CS429-15_updated.xlsx",
		Mode:          ModeOnce,
		CheckInterval: Duration(5 * time.Minute),
		LogName:       "app.log",
		LogMaxSize:    "10 * 1024 * 1024",
		LogLevel:      "INFO",
	}
	return cfg
}

// DefaultDataConfig 返回默认列名
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		Feedback: map[string]string{
			KeyStudentID:      "Student University Id",
			KeyAdjustmentMark: "Adjustment Mark",
			KeyFeedbackMark:   "Feedback Mark",
			KeyFinalMark:      "Final Mark",
		},
		Gradebook: map[string]string{
			KeyUniversityID: "University ID",
			KeyAssignment:   "Assignment 2",
		},
	}
}

// LoadConfig 只加载一次配置，之后返回同一实例
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

// readFile 读取配置文件，文件不存在时返回nil，使用默认配置
func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if len(data) > 0 {
		if err := json.Unmarshal(data, &dcfg); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
	}
	resultChan <- dcfg.withDefaults()
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Validate 检查运行模式和必要字段
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeOnce, ModeWatch, ModeSchedule:
	default:
		return fmt.Errorf("未知的运行模式: %q", c.Mode)
	}
	if c.BaseDir == "" || c.FeedbackFile == "" || c.GradebookFile == "" || c.OutputFile == "" {
		return fmt.Errorf("base_dir、feedback_file、gradebook_file、output_file 不能为空")
	}
	if c.Mode == ModeSchedule && time.Duration(c.CheckInterval) <= 0 {
		return fmt.Errorf("schedule 模式需要设置 check_interval")
	}
	return nil
}

// FeedbackPath 反馈表完整路径
func (c *Config) FeedbackPath() string {
	return filepath.Join(c.BaseDir, c.FeedbackFile)
}

// GradebookPath 成绩册完整路径
func (c *Config) GradebookPath() string {
	return filepath.Join(c.BaseDir, c.GradebookFile)
}

// OutputPath 输出文件完整路径
func (c *Config) OutputPath() string {
	return filepath.Join(c.BaseDir, c.OutputFile)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// withDefaults 补齐未配置的列名
func (dc *DataConfig) withDefaults() *DataConfig {
	def := DefaultDataConfig()
	if dc.Feedback == nil {
		dc.Feedback = map[string]string{}
	}
	if dc.Gradebook == nil {
		dc.Gradebook = map[string]string{}
	}
	for k, v := range def.Feedback {
		if dc.Feedback[k] == "" {
			dc.Feedback[k] = v
		}
	}
	for k, v := range def.Gradebook {
		if dc.Gradebook[k] == "" {
			dc.Gradebook[k] = v
		}
	}
	return dc
}

func (dc *DataConfig) GetFeedbackColumn(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Feedback[key]
}

func (dc *DataConfig) GetGradebookColumn(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Gradebook[key]
}
