package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 常量定义
const (
	RETRY_TIMES     = 3
	RETRY_INTERVAL  = 2 * time.Second
	REQUEST_TIMEOUT = 10 * time.Second
)

// 机器人 webhook 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// textMessage 机器人文本消息
type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// Pusher 把合并结果推送到群机器人
type Pusher struct {
	webhookURL string
	client     *http.Client
	retries    int
	interval   time.Duration
}

func NewPusher(webhookURL string) *Pusher {
	return &Pusher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: REQUEST_TIMEOUT},
		retries:    RETRY_TIMES,
		interval:   RETRY_INTERVAL,
	}
}

// PushText 发送文本消息，失败时按固定间隔重试
func (p *Pusher) PushText(ctx context.Context, content string) error {
	if p.webhookURL == "" {
		return fmt.Errorf("未配置 webhook 地址")
	}

	var msg textMessage
	msg.MsgType = "text"
	msg.Text.Content = content

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(ctx, func() error { return p.post(ctx, payload) }, p.retries, p.interval)
}

func (p *Pusher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook 返回状态 %d: %s", resp.StatusCode, respBody)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
