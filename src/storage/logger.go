package storage

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
type Logger struct {
	filename    string        // 日志文件路径
	file        *os.File      // 日志文件句柄
	console     io.Writer     // 同步输出(可为nil)
	level       LogLevel      // 最低记录级别
	mu          sync.Mutex    // 互斥锁，保证并发安全
	subscribers []chan string // 订阅者通道列表
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	file, err := openLogFile(filename)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		file:     file,
		level:    INFO,
	}, nil
}

func openLogFile(filename string) (*os.File, error) {
	return os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// SetConsole 设置额外的输出，例如os.Stdout
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// SetLevel 设置最低记录级别
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开日志文件，配合SIGHUP使用
func (l *Logger) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.file.Close()
	}

	file, err := openLogFile(l.filename)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	// 格式化日志条目: [时间] 级别: 消息
	entry := fmt.Sprintf("[%s] %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	if l.file != nil {
		l.file.WriteString(entry)
	}
	if l.console != nil {
		io.WriteString(l.console, entry)
	}

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default: // 如果通道已满则跳过
		}
	}
}

// CheckRotate 日志文件超过maxSize时轮转
// maxSize 支持 "10 * 1024 * 1024" 这种写法
func (l *Logger) CheckRotate(maxSize string) error {
	limit, err := eval(maxSize)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("读取日志文件信息失败: %w", err)
	}

	if info.Size() > limit {
		return l.rotateLog()
	}
	return nil
}

// rotateLog 调用方需持有锁
func (l *Logger) rotateLog() error {
	if l.file != nil {
		l.file.Close()
		ext := ""
		base := l.filename
		if i := strings.LastIndex(base, "."); i > 0 {
			base, ext = base[:i], base[i:]
		}
		rotated := fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102150405"), ext)
		if err := os.Rename(l.filename, rotated); err != nil {
			return fmt.Errorf("日志轮转失败: %w", err)
		}
	}

	file, err := openLogFile(l.filename)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// String 实现LogLevel的String方法
// ParseLevel 按名称解析日志级别，不区分大小写，空字符串为INFO
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("未知的日志级别: %q", name)
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func eval(expr string) (int64, error) {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的日志大小 %q: %w", expr, err)
		}
		result *= num
	}
	return result, nil
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) }
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Log(INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Log(ERROR, fmt.Sprintf(format, args...))
}
