package failure

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/sharepoint-upload/internal/graph"
)

// maxInnerDepth bounds how many nested inner errors are rendered. The chain
// comes from the network and may be malformed or cyclic.
const maxInnerDepth = 5

// indentUnit is prepended once per nesting level.
const indentUnit = "  "

// Structured is implemented by errors that carry a provider error document,
// such as *graph.GraphError and the token endpoint errors in internal/auth.
type Structured interface {
	Structured() *graph.ProviderError
}

// Translate renders err as "{op} failed: {summary}".
//
// The summary follows err's chain link by link. Wrapping text is kept; a link
// carrying a provider error document is rendered as its code and message,
// then each detail entry, then each inner error indented by depth. A joined
// error lists each branch on its own indented line. A chain with neither is
// reported as err's message plus one level of wrapped cause when the message
// does not already include it.
func Translate(op string, err error) string {
	if op == "" {
		op = "operation"
	}

	return op + " failed: " + Summarize(err)
}

// Summarize renders err without the operation prefix.
func Summarize(err error) string {
	if err == nil {
		return "unknown error"
	}

	// A nested *Error already carries its own operation; report its cause
	// so the operation is not repeated.
	if fe, ok := err.(*Error); ok && fe.Err != nil {
		return Summarize(fe.Err)
	}

	if doc, status, requestID := document(err); doc != nil {
		return summarizeDocument(doc, status, requestID)
	}

	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		return summarizeJoined(joinHeader(err.Error(), multi.Unwrap()), multi.Unwrap())
	}

	cause := errors.Unwrap(err)
	if cause == nil || !needsRendering(cause) {
		return summarizeGeneric(err)
	}

	msg, causeMsg := err.Error(), cause.Error()

	i := strings.LastIndex(msg, causeMsg)
	if causeMsg == "" || i < 0 {
		return msg + ": " + Summarize(cause)
	}

	if multi, ok := cause.(interface{ Unwrap() []error }); ok {
		return summarizeJoined(msg[:i]+joinHeader(causeMsg, multi.Unwrap()), multi.Unwrap()) + msg[i+len(causeMsg):]
	}

	return msg[:i] + Summarize(cause) + msg[i+len(causeMsg):]
}

// needsRendering reports whether err's chain holds a link that Summarize
// renders differently from its Error text.
func needsRendering(err error) bool {
	for depth := 0; err != nil && depth < maxChainDepth; depth++ {
		if _, ok := err.(*Error); ok {
			return true
		}

		if doc, _, _ := document(err); doc != nil {
			return true
		}

		if _, ok := err.(interface{ Unwrap() []error }); ok {
			return true
		}

		err = errors.Unwrap(err)
	}

	return false
}

// maxChainDepth bounds the walk over a wrap chain.
const maxChainDepth = 64

// joinHeader returns the text a joined error adds before its branches.
func joinHeader(msg string, branches []error) string {
	var texts []string

	for _, b := range branches {
		if b != nil {
			texts = append(texts, b.Error())
		}
	}

	if tail := strings.Join(texts, "\n"); strings.HasSuffix(msg, tail) {
		return strings.TrimSuffix(msg, tail)
	}

	return ""
}

// summarizeJoined renders header, then each branch on its own indented
// line. Without a header the branches are listed unindented.
func summarizeJoined(header string, branches []error) string {
	var lines []string

	for _, b := range branches {
		if b != nil {
			lines = append(lines, Summarize(b))
		}
	}

	header = strings.TrimSuffix(strings.TrimSpace(header), ":")
	if header == "" {
		return strings.Join(lines, "\n")
	}

	var b strings.Builder

	b.WriteString(header + ":")

	for _, line := range lines {
		b.WriteString("\n" + indentUnit + strings.ReplaceAll(line, "\n", "\n"+indentUnit))
	}

	return b.String()
}

// document returns the provider error document err itself carries, if any.
func document(err error) (*graph.ProviderError, int, string) {
	if ge, ok := err.(*graph.GraphError); ok && ge.Provider != nil {
		return ge.Provider, ge.StatusCode, ge.RequestID
	}

	if s, ok := err.(Structured); ok {
		if doc := s.Structured(); doc != nil {
			return doc, 0, ""
		}
	}

	if re, ok := err.(*oauth2.RetrieveError); ok && re.ErrorCode != "" {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}

		return &graph.ProviderError{Code: re.ErrorCode, Message: re.ErrorDescription}, status, ""
	}

	return nil, 0, ""
}

func summarizeDocument(doc *graph.ProviderError, status int, requestID string) string {
	var b strings.Builder

	b.WriteString(codeMessage(doc.Code, doc.Message))

	switch {
	case status != 0 && requestID != "":
		fmt.Fprintf(&b, " (HTTP %d, request-id %s)", status, requestID)
	case status != 0:
		fmt.Fprintf(&b, " (HTTP %d)", status)
	case requestID != "":
		fmt.Fprintf(&b, " (request-id %s)", requestID)
	}

	for _, d := range doc.Details {
		b.WriteString("\n" + indentUnit + "detail")

		if d.Target != "" {
			b.WriteString(" [" + d.Target + "]")
		}

		b.WriteString(": " + codeMessage(d.Code, d.Message))
	}

	inner := doc.Inner
	for depth := 1; inner != nil; depth++ {
		if depth > maxInnerDepth {
			b.WriteString("\n" + strings.Repeat(indentUnit, depth) + "(further inner errors omitted)")

			break
		}

		text := codeMessage(inner.Code, inner.Message)
		if text == "" && inner.RequestID != "" {
			text = "request-id " + inner.RequestID
		}

		if text != "" {
			fmt.Fprintf(&b, "\n%sinner error %d: %s", strings.Repeat(indentUnit, depth), depth, text)
		}

		inner = inner.Inner
	}

	return b.String()
}

func summarizeGeneric(err error) string {
	msg := err.Error()

	cause := errors.Unwrap(err)
	if cause == nil {
		return msg
	}

	causeMsg := cause.Error()
	if causeMsg == "" || strings.Contains(msg, causeMsg) {
		return msg
	}

	return msg + "\n" + indentUnit + "caused by: " + causeMsg
}

func codeMessage(code, message string) string {
	switch {
	case code != "" && message != "":
		return code + ": " + message
	case code != "":
		return code
	default:
		return message
	}
}
