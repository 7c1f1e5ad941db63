package captcha

import "fmt"

// Notify builds the message shown to the user when a task pauses on a
// challenge. It spells out the options and warns against sharing
// credentials; the agent never asks for secrets to get past a wall.
func Notify(url, title string) string {
	return fmt.Sprintf(`CAPTCHA detected - the task is paused and needs your help.

Page: %s
URL:  %s

The site is asking for human verification before it lets us continue.
You have three options:

1. Solve it yourself: switch to the open browser window and complete
   the CAPTCHA. The task resumes automatically once the page clears.

2. Wait: the agent keeps watching the page for up to five minutes. If
   the challenge disappears (for example the site lifts the block), the
   task continues on its own.

3. Do nothing: after the waiting period the agent tries alternative
   routes to the same content, such as another search engine or a
   site-scoped search.

Security notes:
- Never enter passwords on a page the agent opened for verification.
- Never share session tokens or secret API keys with anyone asking for
  them as part of "verification".
- The agent itself will never request credentials to pass a CAPTCHA.`,
		title, url)
}
