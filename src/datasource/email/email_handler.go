// email_handler.go
package email

import (
	"MarksIntegration/src/datasource/file"
	"MarksIntegration/src/storage"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// XLSXAttachmentHandler 把目标邮件中的xlsx附件保存为反馈表
type XLSXAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	FileName      string          // 保存的文件名(反馈表文件名)
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewXLSXAttachmentHandler(subject, dataDir, fileName string) *XLSXAttachmentHandler {
	return &XLSXAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		FileName:      fileName,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *XLSXAttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *XLSXAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存邮件中第一个可读取的xlsx附件，返回是否写入了新的反馈表
func (h *XLSXAttachmentHandler) Handle(email *Email, logger *storage.Logger) (bool, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return false, nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		logger.Info(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return false, nil
	}

	logger.Info(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return false, fmt.Errorf("创建目录失败: %w", err)
	}

	for _, attachment := range email.Attachments {
		if !strings.EqualFold(filepath.Ext(attachment.Filename), ".xlsx") {
			continue
		}

		// 先确认附件能读出表头再覆盖反馈表
		if _, err := file.ReadSheetBytes(attachment.Content, "", 1); err != nil {
			logger.Warning(fmt.Sprintf("附件 %s 不是有效的xlsx: %v", attachment.Filename, err))
			continue
		}

		filePath := filepath.Join(h.DataDir, h.FileName)
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return false, fmt.Errorf("保存附件失败: %w", err)
		}

		logger.Info(fmt.Sprintf("附件 %s 已保存到: %s", attachment.Filename, filePath))
		h.markAsProcessed(email.UID)
		return true, nil
	}

	return false, fmt.Errorf("邮件 %q 中没有可用的xlsx附件", email.Subject)
}
