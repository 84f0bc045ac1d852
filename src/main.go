package main

import (
	"MarksIntegration/src/config"
	"MarksIntegration/src/datapush"
	"MarksIntegration/src/datasource/email"
	"MarksIntegration/src/datasource/file"
	"MarksIntegration/src/processor"
	"MarksIntegration/src/storage"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}

	// 初始化日志系统
	logger, err := setupLogger(cfg, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel, logger)

	a := newApp(cfg, dcfg, logger)

	switch cfg.Mode {
	case config.ModeWatch:
		err = a.watch(ctx)
	case config.ModeSchedule:
		err = a.schedule(ctx)
	default:
		_, err = a.run(ctx)
	}

	if err != nil {
		logger.Fatal(err.Error())
		logger.Close()
		os.Exit(1)
	}
}

// setupLogger 按配置创建日志记录器并设置级别
func setupLogger(cfg *config.Config, console io.Writer) (*storage.Logger, error) {
	level, err := storage.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, err
	}
	logger.SetConsole(console)
	logger.SetLevel(level)
	return logger, nil
}

// app 持有一次运行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *storage.Logger
	processor *processor.GradeProcessor
	mailbox   email.MailService
	handler   *email.XLSXAttachmentHandler
	pusher    *datapush.Pusher
	mu        sync.Mutex // 同一时间只执行一次合并
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *app {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		processor: processor.NewGradeProcessor(cfg, dcfg),
	}
	if cfg.Email.Enabled {
		a.mailbox = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password)
		a.handler = email.NewXLSXAttachmentHandler(cfg.Email.TargetSubject, cfg.BaseDir, cfg.FeedbackFile)
	}
	if cfg.Push.Enabled {
		a.pusher = datapush.NewPusher(cfg.Push.WebhookURL)
	}
	return a
}

// fetchFeedback 从邮箱取最新的反馈表，返回是否保存了新文件
func (a *app) fetchFeedback() (bool, error) {
	if a.mailbox == nil {
		return false, nil
	}
	newEmail, err := email.CheckAndProcessEmails(a.mailbox, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return false, fmt.Errorf("检查处理邮件失败: %w", err)
	}
	if newEmail == nil {
		return false, nil
	}
	return a.handler.Handle(newEmail, a.logger)
}

// run 执行一次合并并通知
func (a *app) run(ctx context.Context) (processor.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.fetchFeedback(); err != nil {
		// 邮箱不可用时继续使用本地的反馈表
		a.logger.Error(err.Error())
	}

	summary, err := a.processor.Run()
	if err != nil {
		return summary, fmt.Errorf("合并成绩失败: %w", err)
	}
	a.logger.Info(summary.String())
	a.notify(ctx, summary)

	if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
		a.logger.Error(err.Error())
	}
	return summary, nil
}

func (a *app) notify(ctx context.Context, summary processor.Summary) {
	if a.pusher != nil {
		if err := a.pusher.PushText(ctx, summary.String()); err != nil {
			a.logger.Error("推送合并结果失败: " + err.Error())
		}
	}
	if a.cfg.SendEmail.Enabled {
		if err := email.SendEmail(a.cfg, summary.String(), summary.OutputPath); err != nil {
			a.logger.Error(err.Error())
		} else {
			a.logger.Info("更新后的成绩册已发送")
		}
	}
}

// watch 反馈表或成绩册被保存时重新合并
func (a *app) watch(ctx context.Context) error {
	if _, err := a.run(ctx); err != nil {
		a.logger.Error(err.Error())
	}

	monitor, err := file.NewFileMonitor(a.cfg.BaseDir, a.cfg.FeedbackFile, a.cfg.GradebookFile)
	if err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", a.cfg.BaseDir, err)
	}
	a.logger.Info(fmt.Sprintf("开始监听 %s，按Ctrl+C退出", a.cfg.BaseDir))

	return monitor.Watch(ctx, func(path string) {
		a.logger.Info("检测到文件更新: " + path)
		if _, err := a.run(ctx); err != nil {
			a.logger.Error(err.Error())
		}
	})
}

// schedule 按检查间隔定时合并
func (a *app) schedule(ctx context.Context) error {
	interval := time.Duration(a.cfg.CheckInterval).String()
	cronSpec := fmt.Sprintf("@every %s", interval)

	c := cron.New()
	err := c.AddFunc(cronSpec, func() {
		a.logger.Info(fmt.Sprintf("开始定时检查(间隔: %v)...", interval))
		if _, err := a.run(ctx); err != nil {
			a.logger.Error(err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()

	a.logger.Info(fmt.Sprintf("定时合并已启动(检查间隔: %v)，按Ctrl+C退出", interval))
	<-ctx.Done()
	return nil
}

// setupSignalHandler SIGINT/SIGTERM退出，SIGHUP重新打开日志文件
func setupSignalHandler(cancel context.CancelFunc, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGHUP:
				if err := logger.Reopen(); err != nil {
					log.Printf("Failed to reopen log: %v", err)
				}
			default:
				logger.Info("Received signal: " + sig.String() + ", shutting down...")
				cancel()
				return
			}
		}
	}()
}
