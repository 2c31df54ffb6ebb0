package mail

import (
	"fmt"
	"strings"
	"time"
)

type ActivationComposer struct {
	from    Address
	baseURL string
}

func NewActivationComposer(from Address, baseURL string) ActivationComposer {
	return ActivationComposer{from: from, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c ActivationComposer) Compose(username, email, tokenID string, expiresAt time.Time) Message {
	link := c.baseURL + "/" + tokenID
	text := fmt.Sprintf(`%s, click the link below to activate your account:

%s

The link expires at %s.

If you did not create this account, ignore this email.
`, username, link, expiresAt.UTC().Format(time.RFC1123))

	return Message{
		From:    c.from,
		To:      email,
		Subject: "Activate your account",
		Text:    text,
	}
}
