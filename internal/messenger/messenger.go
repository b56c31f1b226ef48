// Package messenger generates outreach messages with a data-locked prompt
// system: the LLM only sees facts we actually hold, and strict templates
// take over when context is missing.
package messenger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/pkg/llm"
)

// Style adjusts the tone of a generated message.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleFriendly     Style = "friendly"
	StyleShort        Style = "short"
)

// Generation methods reported to callers.
const (
	MethodLLM      = "llm"
	MethodTemplate = "template"
)

// Messenger generates outreach messages. A nil LLM client limits it to the
// template path.
type Messenger struct {
	senderOrg string
	llm       llm.Client
	model     string
}

// NewMessenger creates a messenger. Pass a nil client when AI generation
// is unavailable.
func NewMessenger(cfg config.MessengerConfig, client llm.Client, llmModel string) *Messenger {
	senderOrg := cfg.SenderOrg
	if senderOrg == "" {
		senderOrg = "Our Company"
	}
	return &Messenger{senderOrg: senderOrg, llm: client, model: llmModel}
}

// Generate produces an outreach message and reports which method built it.
// The LLM path needs a configured client and enough real data to
// personalize from; everything else falls back to templates.
func (m *Messenger) Generate(ctx context.Context, lead *model.Lead) (string, string) {
	if m.llm != nil && hasSufficientData(lead) {
		msg, err := m.llmMessage(ctx, lead)
		if err != nil {
			zap.L().Debug("messenger: llm generation failed, using template",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		} else {
			return msg, MethodLLM
		}
	}
	return m.templateMessage(lead), MethodTemplate
}

// GenerateWithStyle generates a message and applies the requested style.
func (m *Messenger) GenerateWithStyle(ctx context.Context, lead *model.Lead, style Style) (string, string) {
	msg, method := m.Generate(ctx, lead)
	return m.ApplyStyle(msg, style), method
}

// ApplyStyle rewrites the message tone. Unknown styles return the message
// unchanged.
func (m *Messenger) ApplyStyle(message string, style Style) string {
	switch style {
	case StyleProfessional:
		message = strings.ReplaceAll(message, "Hi ", "Dear ")
		if !strings.Contains(message, "Best regards,") {
			message += "\n\nBest regards,\n" + m.senderOrg
		}
	case StyleFriendly:
		message = strings.ReplaceAll(message, "Dear ", "Hi ")
		message = strings.ReplaceAll(message, "Best regards,", "Cheers,")
	case StyleShort:
		lines := strings.Split(message, "\n")
		if len(lines) > 4 {
			message = strings.Join(lines[:4], "\n")
		}
	}
	return message
}

// hasSufficientData requires at least two real data points before the LLM
// is allowed to personalize.
func hasSufficientData(lead *model.Lead) bool {
	points := 0
	if lead.CompanyName != "" {
		points++
	}
	if lead.Industry != "" {
		points++
	}
	if len(lead.AboutText) > 50 {
		points++
	}
	if lead.ContactName != "" {
		points++
	}
	if lead.Employees != "" {
		points++
	}
	return points >= 2
}

const messengerSystemPrompt = "You are an outreach assistant. Generate a professional outreach message " +
	"using ONLY the information provided in the context. Do not invent or " +
	"hallucinate any information not present in the context. " +
	"Keep the message concise and relevant to the recipient."

// llmMessage builds the fact-locked prompt and asks the model for a
// message. If the known company name is missing from the output, a
// greeting naming it is prepended so the message always lands on target.
func (m *Messenger) llmMessage(ctx context.Context, lead *model.Lead) (string, error) {
	companyName := lead.CompanyName
	if companyName == "" {
		companyName = "their company"
	}
	industry := lead.Industry
	if industry == "" {
		industry = "their industry"
	}
	contactName := lead.ContactName
	if contactName == "" {
		contactName = "the team"
	}

	parts := []string{
		"Sender Organization: " + m.senderOrg,
		"Recipient Company: " + companyName,
		"Industry: " + industry,
		"Website: " + lead.Website,
	}
	if lead.AboutText != "" {
		about := lead.AboutText
		if len(about) > 200 {
			about = about[:200]
		}
		parts = append(parts, "About: "+about+"...")
	}
	if contactName != "" {
		parts = append(parts, "Contact: "+contactName)
	}
	if lead.Employees != "" {
		parts = append(parts, fmt.Sprintf("Size: %s employees", lead.Employees))
	}
	parts = append(parts, fmt.Sprintf(
		"\nWrite a personalized outreach message from %s to %s that acknowledges their work in %s. "+
			"The message should be professional but not overly formal. "+
			"Focus on how %s could provide value to their business.",
		m.senderOrg, companyName, industry, m.senderOrg,
	))

	temp := 0.3
	resp, err := m.llm.CreateMessage(ctx, llm.MessageRequest{
		Model:       m.model,
		MaxTokens:   200,
		Temperature: &temp,
		System:      messengerSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: strings.Join(parts, "\n"),
		}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(m.model, "messaging")

	message := strings.TrimSpace(resp.Text())
	if lead.CompanyName != "" && !strings.Contains(strings.ToLower(message), strings.ToLower(lead.CompanyName)) {
		message = fmt.Sprintf("Hi %s team,\n\n%s", lead.CompanyName, message)
	}
	return message, nil
}
