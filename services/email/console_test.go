package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
)

func testConfig() *core.Config {
	return &core.Config{AppName: "Classroom", FrontendBaseURL: "https://classroom.test"}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	core.ParseEmailTemplates(core.NopLogger, true)
	svc := NewConsoleServiceMock(testConfig())

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Jane", "Username": "jane", "UID": "dWlk", "Token": "tok-sig"},
	}
	noRecipient := &core.EmailMessage{Subject: "lost", BodyStr: "nobody reads this"}
	plain := &core.EmailMessage{To: msg.To, Subject: "plain", BodyStr: "hello"}
	svc.SendMessages(msg, noRecipient, plain)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.True(t, strings.Contains(sent[0].TextContent, "https://classroom.test/password-reset/dWlk/tok-sig"), sent[0].TextContent)
	assert.True(t, strings.Contains(sent[0].HTMLContent, `href="https://classroom.test/password-reset/dWlk/tok-sig"`), sent[0].HTMLContent)
	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_prepare(t *testing.T) {
	conf := testConfig()
	svc := NewSendgridService(core.NopLogger, conf).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Cc:          []mail.Address{{Address: "cc@test.cd"}},
		Subject:     "Password reset",
		TextContent: "text",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Classroom] Password reset", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 1, "no html part without html content")
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
