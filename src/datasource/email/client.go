// client.go
package email

import (
	// 标准库导入
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/smtp"
	"sort"
	"strings"
	"sync"
	"time"

	// 第三方库导入
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	mailer "github.com/jordan-wright/email"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	// 项目内部导入
	"MarksIntegration/src/config"
	"MarksIntegration/src/storage"
)

/******************** 常量定义 ********************/
const (
	MaxFetchMessages   = 100                // 单次最大获取邮件数量
	FetchBufferSize    = 10                 // 邮件获取通道缓冲区大小
	RecentMailDuration = 7 * 24 * time.Hour // 只查找最近一周的邮件
)

/******************** 接口定义 ********************/

// MailService 邮件服务核心接口
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

/******************** 数据结构 ********************/

// Email 邮件基础数据结构
type Email struct {
	UID         uint32        // 邮件唯一标识符(IMAP UID)
	Date        time.Time     // 邮件发送时间
	From        string        // 发件人信息(已解码)
	Subject     string        // 邮件主题(已解码)
	Attachments []*Attachment // 邮件附件列表
}

// Attachment 邮件附件数据结构
type Attachment struct {
	Filename string // 附件文件名(已解码)
	Content  []byte // 附件二进制内容
}

/******************** 邮件客户端实现 ********************/

// EmailClient IMAP邮件客户端实现
type EmailClient struct {
	server    string         // IMAP服务器地址(包含端口)
	username  string         // 登录用户名
	password  string         // 登录密码/授权码
	client    *client.Client // IMAP客户端实例
	mu        sync.Mutex     // 线程安全锁
	connected bool           // 连接状态标记
}

// NewEmailClient 创建邮件客户端实例
// 参数:
//   - server: 服务器地址(如"imap.example.ac.uk:993")
//   - username: 邮箱账号
//   - password: 密码/授权码
func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect 建立TLS连接并登录(线程安全)，已有连接可用时直接返回
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		// 连接已失效则重置
		s.client.Logout()
		s.client = nil
		s.connected = false
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect 安全断开连接(线程安全)
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails 获取收件箱中最近的未读邮件(线程安全)
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	// 限制获取数量，保留最新的
	if len(ids) > MaxFetchMessages {
		ids = ids[len(ids)-MaxFetchMessages:]
	}

	return s.fetchMessages(ids)
}

// fetchMessages 获取指定序号的邮件内容
func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	var parseErrs []string
	for msg := range messages {
		e, err := parseEmail(msg, section)
		if err != nil {
			parseErrs = append(parseErrs, err.Error())
			continue
		}
		emails = append(emails, e)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	if len(emails) == 0 && len(parseErrs) > 0 {
		return nil, fmt.Errorf("解析邮件失败: %s", strings.Join(parseErrs, "; "))
	}

	return emails, nil
}

/******************** 邮件解析相关 ********************/

// parseEmail 解析单个邮件
func parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("邮件正文为空")
	}
	e, err := ReadEmail(r)
	if err != nil {
		return nil, err
	}
	e.UID = msg.Uid
	if e.Date.IsZero() {
		e.Date = msg.InternalDate
	}
	return e, nil
}

// ReadEmail 从原始邮件内容解析出头信息和附件
func ReadEmail(r io.Reader) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	header := mr.Header
	date, _ := header.Date() // 日期解析错误不影响后续处理

	e := &Email{
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // 跳过解析失败的部分
		}

		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			if att, err := parseAttachment(h, p.Body); err == nil {
				e.Attachments = append(e.Attachments, att)
			}
		}
	}
	return e, nil
}

// parseAttachment 解析单个附件
func parseAttachment(h *mail.AttachmentHeader, body io.Reader) (*Attachment, error) {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return nil, fmt.Errorf("无效的附件名")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("读取附件内容失败: %w", err)
	}

	return &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	}, nil
}

/******************** 工具函数 ********************/

// decodeHeader 解码邮件头特殊编码
// 支持格式: =?charset?encoding?encoded-text?=
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{
		CharsetReader: charsetReader,
	}

	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader 字符集转换器，GBK/GB2312转UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	charset = strings.ToLower(charset)
	switch charset {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	default:
		return input, nil
	}
}

/******************** 业务逻辑函数 ********************/

// CheckAndProcessEmails 连接邮箱，返回主题包含subject的最新邮件，没有时返回nil
func CheckAndProcessEmails(mailService MailService, subject string, logger *storage.Logger) (*Email, error) {
	startTime := time.Now()
	logger.Info("开始检查邮箱...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	emails, err := mailService.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}

	if len(emails) == 0 {
		logger.Info("没有新邮件")
		return nil, nil
	}

	targetEmail := filterLatestTargetEmail(emails, subject)
	if targetEmail == nil {
		logger.Info("没有目标邮件")
		return nil, nil
	}

	logger.Infof("找到目标邮件 %q (UID:%d)，耗时: %v", targetEmail.Subject, targetEmail.UID, time.Since(startTime))
	return targetEmail, nil
}

// filterLatestTargetEmail 返回主题包含keyword的最新邮件
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targetEmails []*Email
	for _, e := range emails {
		if strings.Contains(e.Subject, keyword) {
			targetEmails = append(targetEmails, e)
		}
	}

	if len(targetEmails) == 0 {
		return nil
	}

	// 按日期降序排序
	sort.SliceStable(targetEmails, func(i, j int) bool {
		return targetEmails[i].Date.After(targetEmails[j].Date)
	})

	return targetEmails[0]
}

/******************** 发送邮件 ********************/

// buildEmail 构造带附件的邮件
func buildEmail(c *config.Config, body, attachmentPath string) (*mailer.Email, error) {
	if len(c.SendEmail.To) == 0 {
		return nil, fmt.Errorf("未配置收件人")
	}

	e := mailer.NewEmail()
	e.From = c.SendEmail.Username
	e.To = c.SendEmail.To
	e.Subject = c.SendEmail.Subject
	if e.Subject == "" {
		e.Subject = "Updated gradebook: " + c.OutputFile
	}
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// SendEmail 将更新后的成绩册作为附件发送给配置的收件人
func SendEmail(c *config.Config, body, attachmentPath string) error {
	e, err := buildEmail(c, body, attachmentPath)
	if err != nil {
		return err
	}

	// 确保服务器地址包含端口
	smtpAddr := c.SendEmail.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	err = e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", c.SendEmail.Username, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, smtpAddr)
	}
	return nil
}
