package messenger

import (
	"fmt"
	"strings"

	"github.com/leadboost/leadboost/internal/model"
)

// templateMessage picks the richest template the lead's data supports.
func (m *Messenger) templateMessage(lead *model.Lead) string {
	switch {
	case lead.CompanyName != "" && lead.Industry != "":
		return m.industryTemplate(lead)
	case lead.CompanyName != "":
		return m.genericTemplate(lead)
	default:
		return m.websiteOnlyTemplate(lead)
	}
}

func (m *Messenger) industryTemplate(lead *model.Lead) string {
	contactRef := lead.ContactName
	if contactRef == "" {
		contactRef = "the team"
	}
	companyRef := lead.CompanyName
	if companyRef == "" {
		companyRef = "your company"
	}

	switch strings.ReplaceAll(strings.ToLower(lead.Industry), " ", "") {
	case "software":
		return fmt.Sprintf(
			"Hi %s,\n\nI came across %s in the software space and was impressed by your work. "+
				"At %s, we help software companies optimize their operations and growth. "+
				"I'd love to explore how we might add value to %s's journey.\n\nBest regards,\n%s",
			contactRef, companyRef, m.senderOrg, companyRef, m.senderOrg)
	case "consulting":
		return fmt.Sprintf(
			"Hi %s,\n\nI noticed %s in the consulting field and thought there might be synergies "+
				"with our work at %s. We specialize in helping consulting firms enhance their "+
				"client value proposition. Would you be open to a brief conversation?\n\nBest regards,\n%s",
			contactRef, companyRef, m.senderOrg, m.senderOrg)
	case "ecommerce":
		return fmt.Sprintf(
			"Hi %s,\n\nI discovered %s in the e-commerce space and was intrigued by your approach. "+
				"%s works with e-commerce businesses to streamline their operations and drive growth. "+
				"I'd be keen to learn more about your current challenges and see if there's alignment "+
				"with our expertise.\n\nBest regards,\n%s",
			contactRef, companyRef, m.senderOrg, m.senderOrg)
	default:
		return fmt.Sprintf(
			"Hi %s,\n\nI came across %s in the %s space and thought there could be value in a "+
				"brief conversation. We at %s work with companies like yours to explore growth "+
				"and efficiency opportunities.\n\nBest regards,\n%s",
			contactRef, companyRef, lead.Industry, m.senderOrg, m.senderOrg)
	}
}

func (m *Messenger) genericTemplate(lead *model.Lead) string {
	contactRef := lead.ContactName
	if contactRef == "" {
		contactRef = "the team"
	}

	return fmt.Sprintf(
		"Hi %s,\n\nI discovered %s and was interested in what you're building. At %s, we work "+
			"with innovative companies to help them achieve their growth objectives. I'd love to "+
			"learn more about your current initiatives and see if there's potential for "+
			"collaboration.\n\nBest regards,\n%s",
		contactRef, lead.CompanyName, m.senderOrg, m.senderOrg)
}

func (m *Messenger) websiteOnlyTemplate(lead *model.Lead) string {
	website := lead.Website
	if website == "" {
		website = "your website"
	}

	return fmt.Sprintf(
		"Hi team,\n\nI visited %s and was impressed by your company's work. At %s, we help "+
			"companies like yours navigate growth challenges and operational efficiencies. "+
			"I'd be interested in exploring potential synergies.\n\nBest regards,\n%s",
		website, m.senderOrg, m.senderOrg)
}
