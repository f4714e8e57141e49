package autoreply

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

var replyText = texttemplate.Must(texttemplate.New("reply.txt").Parse(`Hi,

Thanks for your message - this is an automated reply to confirm we've received it.

Best,
{{.Signature}}`))

var replyHTML = htmltemplate.Must(htmltemplate.New("reply.html").Parse(`<!DOCTYPE html>
<html>
  <body style="margin:0; padding:0; background:#0f172a; font-family: Inter, Arial, sans-serif; color:#f8fafc">
    <div style="max-width:560px; margin:60px auto; background:#0b1220; padding:20px; border-radius:12px;">
      <h3 style="color:#60a5fa; margin-top:0;">Thanks for reaching out</h3>
      <p>We received your message. This is an automatic reply to confirm receipt. We'll get back to you as soon as possible.</p>
      <p style="font-size:13px; color:#9ca3af;">If it's urgent, please call: <strong>{{.Phone}}</strong></p>
      <hr style="border:none; border-top:1px solid rgba(255,255,255,0.04); margin:10px 0;">
      <p style="font-size:12px; color:#94a3b8;">Automated system message, no action required.</p>
    </div>
  </body>
</html>
`))

type replyData struct {
	Phone     string
	Signature string
}

func renderReply(data replyData) (text, html string, err error) {
	var tb, hb strings.Builder
	if err := replyText.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := replyHTML.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}

// Greeting is a named manual greeting. Body contains a {name} placeholder.
type Greeting struct {
	Name string
	Body string
}

// Greetings lists the built-in templates; the first one is the fallback.
var Greetings = []Greeting{
	{Name: "friendly", Body: "Hi {name}!\nJust wanted to drop in and say hello! Hope you're having an amazing day.\n\n"},
	{Name: "professional", Body: "Greetings {name},\nThank you for contacting us. We appreciate your time.\n\n"},
	{Name: "tech", Body: "[SYSTEM ONLINE] Greetings, {name}\n$ ssh connection@established\nHandshake protocol: SUCCESS\n\n"},
	{Name: "casual", Body: "What's up {name}?\nJust checking in! Hope everything's going well on your end.\n\n"},
	{Name: "enthusiastic", Body: "HELLO {name}!!\nSuper excited to connect with you! Let's make something awesome happen!\n\n"},
	{Name: "funny", Body: "Yo {name}!\n*Dramatically enters inbox* Hello there! Just sliding into your emails like a pro.\n\n"},
	{Name: "assistant", Body: "[AI] Hello {name}!\n*beep boop* Human detected! Pleased to make your acquaintance.\n\n"},
	{Name: "scifi", Body: "Commander {name},\n[INCOMING TRANSMISSION]\nThis is Starship Alpha-7. We've detected your signal.\n\n"},
}

// LookupGreeting returns the template with the given name, or the first template when unknown
func LookupGreeting(name string) Greeting {
	for _, g := range Greetings {
		if strings.EqualFold(g.Name, name) {
			return g
		}
	}
	return Greetings[0]
}

// RenderGreeting fills in recipient ("there" when empty) and returns the plain and HTML bodies
func RenderGreeting(g Greeting, recipient string) (text, html string) {
	if strings.TrimSpace(recipient) == "" {
		recipient = "there"
	}
	text = strings.ReplaceAll(g.Body, "{name}", recipient)
	escaped := htmltemplate.HTMLEscapeString(g.Body)
	html = strings.ReplaceAll(strings.ReplaceAll(escaped, "\n", "<br>"), "{name}", htmltemplate.HTMLEscapeString(recipient))
	return text, html
}
