package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode 模拟从队列中收到的消息，Data 会被解码为 map
func decode(t *testing.T, m domain.MailMessage) domain.MailMessage {
	t.Helper()

	body, err := json.Marshal(m)
	require.NoError(t, err)
	var out domain.MailMessage
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestRenderer_Templates(t *testing.T) {
	r, err := newRenderer()
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  domain.MailMessage
		want []string
	}{
		{
			name: "create user",
			msg: domain.MailMessage{Type: domain.MailTypeCreateUser, To: "a@example.com", Data: domain.CreateUserMailData{
				FullName: "张三", Username: "zhangsan", Password: "s3cret",
			}},
			want: []string{"张三", "zhangsan", "s3cret"},
		},
		{
			name: "reset password",
			msg: domain.MailMessage{Type: domain.MailTypeResetPassword, To: "a@example.com", Data: domain.ResetPasswordMailData{
				FullName: "张三", OTP: "123456", Expiration: 15,
			}},
			want: []string{"123456", "15 分钟"},
		},
		{
			name: "run succeeded",
			msg: domain.MailMessage{Type: domain.MailTypeRunFinished, To: "a@example.com", Data: domain.RunFinishedMailData{
				FullName: "张三", RunID: "r1", RunName: "北区", Status: domain.RunStatusSucceeded, BestFitness: 0.73126,
			}},
			want: []string{"北区", "0.7313"},
		},
		{
			name: "run failed",
			msg: domain.MailMessage{Type: domain.MailTypeRunFinished, To: "a@example.com", Data: domain.RunFinishedMailData{
				FullName: "张三", RunID: "r1", RunName: "北区", Status: domain.RunStatusFailed, Error: "锚点场地不存在",
			}},
			want: []string{"任务运行失败", "锚点场地不存在"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := decode(t, tt.msg)

			var buf bytes.Buffer
			require.NoError(t, r.templates[msg.Type].Execute(&buf, msg.Data))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}

			_, err := r.build("noreply@example.com", &msg)
			assert.NoError(t, err)
		})
	}
}

func TestRenderer_BuildErrors(t *testing.T) {
	r, err := newRenderer()
	require.NoError(t, err)

	_, err = r.build("noreply@example.com", &domain.MailMessage{Type: "change_email", To: "a@example.com"})
	assert.ErrorContains(t, err, "不支持的邮件类型")

	_, err = r.build("noreply@example.com", &domain.MailMessage{Type: domain.MailTypeCreateUser, To: "not an address"})
	assert.ErrorContains(t, err, "收件人")
}
