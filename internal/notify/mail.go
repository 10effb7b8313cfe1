package notify

import (
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

const CompletionTemplateName = "assignment_completed_email.html"

// ParseCompletionTemplate 解析任务完成邮件的模板
func ParseCompletionTemplate(path string) (*template.Template, error) {
	return template.New(CompletionTemplateName).Funcs(template.FuncMap{
		"seconds": func(s float64) string {
			return time.Duration(s * float64(time.Second)).Round(time.Second).String()
		},
	}).ParseFiles(path)
}

// BuildMail 把队列中的一条消息构建成邮件
// 返回的错误都说明消息本身有问题，重新入队也不会成功
func BuildMail(body []byte, from string, tmpl *template.Template) (*mail.Msg, error) {
	// data 先保留原始 JSON，按类型再解析
	var message struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(message.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	switch message.Type {
	case domain.MailTypeAssignmentCompleted:
		var data domain.AssignmentCompletedMailData
		if err := json.Unmarshal(message.Data, &data); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}
		if err := m.SetBodyHTMLTemplate(tmpl, data); err != nil {
			return nil, fmt.Errorf("无法设置邮件正文: %w", err)
		}
		m.Subject(fmt.Sprintf("分组任务 %s 已结束（%s）", data.TaskID, data.Status))
	default:
		return nil, fmt.Errorf("不支持的邮件类型 %q", message.Type)
	}

	return m, nil
}
