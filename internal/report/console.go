// Package report turns verification events into output: the console transcript
// on stdout, and result records shipped to files or webhooks as each step
// finishes.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/movie-api/moviecheck/internal/verify"
)

// Console prints the human-readable transcript of a run
type Console struct {
	w       io.Writer
	verbose bool
	color   bool
	mu      sync.Mutex
}

// NewConsole creates a console reporter writing to w. verbose pretty-prints the
// bodies of passing health and fetch steps; color enables the emoji markers.
func NewConsole(w io.Writer, verbose, color bool) *Console {
	return &Console{w: w, verbose: verbose, color: color}
}

func (c *Console) mark(pass bool) string {
	switch {
	case !c.color && pass:
		return "PASS:"
	case !c.color:
		return "FAIL:"
	case pass:
		return "✅ PASS:"
	default:
		return "❌ FAIL:"
	}
}

// StepStarted prints the section banner of a step
func (c *Console) StepStarted(step verify.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n -- %s\n", step.Banner)
}

// StepFinished prints the PASS or FAIL line of a step
func (c *Console) StepFinished(res *verify.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Passed {
		fmt.Fprintf(c.w, "%s %s\n", c.mark(true), res.Description)
		if res.Detail != "" {
			fmt.Fprintln(c.w, res.Detail)
		}
		if c.verbose && res.Pretty {
			fmt.Fprintln(c.w, PrettyJSON([]byte(res.Body)))
		}
		return
	}

	switch {
	case res.Actual == 0:
		// transport failure, no response
		fmt.Fprintf(c.w, "%s %s: %s\n", c.mark(false), res.Description, res.Error)
		return
	case res.Actual != res.Expected:
		fmt.Fprintf(c.w, "%s %s: Expected %d, got %d\n", c.mark(false), res.Description, res.Expected, res.Actual)
	default:
		fmt.Fprintf(c.w, "%s %s: %s\n", c.mark(false), res.Description, res.Error)
	}
	fmt.Fprintf(c.w, "Response body: %s\n", res.Body)
	fmt.Fprintln(c.w, PrettyJSON([]byte(res.Body)))
}

// Section prints a banner outside of any step
func (c *Console) Section(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n -- %s\n", title)
}

// Pass prints a success line outside of any step, marked only when color is on
func (c *Console) Pass(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.color {
		msg = "✅ " + msg
	}
	fmt.Fprintln(c.w, msg)
}

// Fail prints a failure line outside of any step, marked only when color is on
func (c *Console) Fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.color {
		msg = "❌ " + msg
	}
	fmt.Fprintln(c.w, msg)
}

// Done prints the closing line of a fully passing run
func (c *Console) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.color {
		fmt.Fprintln(c.w, "\n🎉 All tests passed successfully!")
		return
	}
	fmt.Fprintln(c.w, "\nAll tests passed successfully!")
}

// PrettyJSON indents body as JSON with two spaces, or returns it unchanged if
// it is not JSON.
func PrettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
