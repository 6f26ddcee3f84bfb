package handlers

import (
	"github.com/gofiber/fiber/v2"
)

const legalStyle = `<meta name="viewport" content="width=device-width, initial-scale=1">
<style>body{font-family:-apple-system,BlinkMacSystemFont,sans-serif;max-width:800px;margin:0 auto;padding:20px;color:#333}h1{color:#1a1a1a}h2{color:#444;margin-top:30px}</style>`

type LegalHandler struct {
	appName      string
	contactEmail string
}

func NewLegalHandler(appName, contactEmail string) *LegalHandler {
	return &LegalHandler{appName: appName, contactEmail: contactEmail}
}

func (h *LegalHandler) PrivacyPolicy(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Privacy Policy - ` + h.appName + `</title>
` + legalStyle + `
</head><body>
<h1>Privacy Policy</h1>
<p>Last updated: October 2026</p>
<h2>Information We Collect</h2>
<p>We collect your name, email address and the litter reports you submit: photos or videos, the location you choose to share and an optional description.</p>
<h2>How We Use Your Information</h2>
<p>Reports are reviewed by city staff to plan cleanups. Your name and point total appear on the public leaderboard. Report locations are shown on the map without your name.</p>
<h2>Data Storage</h2>
<p>Your data is stored on servers in the European Union. We do not sell your personal information to third parties.</p>
<h2>Account Deletion</h2>
<p>You can delete your account from the profile screen. This removes your reports, points, purchases, event registrations and challenge progress.</p>
<h2>Contact</h2>
<p>For questions about this policy, contact us at ` + h.contactEmail + `</p>
</body></html>`)
}

func (h *LegalHandler) TermsOfService(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Terms of Service - ` + h.appName + `</title>
` + legalStyle + `
</head><body>
<h1>Terms of Service</h1>
<p>Last updated: October 2026</p>
<h2>Acceptance</h2>
<p>By using ` + h.appName + `, you agree to these terms.</p>
<h2>Reports</h2>
<p>Only submit photos and videos you took yourself of litter in public space. Do not photograph people in a way that identifies them. Reports with offensive content are rejected.</p>
<h2>Points and Rewards</h2>
<p>Points are awarded when staff verify a report or when you complete a challenge. Points have no cash value. Coupons are subject to the partner's conditions and may be withdrawn.</p>
<h2>Termination</h2>
<p>We may suspend accounts that submit fraudulent reports or abuse the reward system.</p>
<h2>Contact</h2>
<p>For questions, contact us at ` + h.contactEmail + `</p>
</body></html>`)
}
