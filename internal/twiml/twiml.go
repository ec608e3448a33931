// Package twiml is a minimal Twilio Markup Language response builder.
// It intentionally avoids the provider SDK: only the verbs this system
// emits at the webhook boundary are modelled.
package twiml

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Response is the top-level TwiML document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Dial bridges the call to a target. Timeout bounds ringing in seconds.
type Dial struct {
	XMLName        xml.Name `xml:"Dial"`
	Timeout        int      `xml:"timeout,attr,omitempty"`
	AnswerOnBridge bool     `xml:"answerOnBridge,attr,omitempty"`
	Sip            *Sip     `xml:"Sip,omitempty"`
}

// Sip is a SIP dial target with call-lifecycle status callbacks.
type Sip struct {
	XMLName             xml.Name `xml:"Sip"`
	StatusCallback      string   `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent string   `xml:"statusCallbackEvent,attr,omitempty"`
	URI                 string   `xml:",chardata"`
}

// statusCallbackEvents is the full lifecycle event set requested on every
// bridge.
const statusCallbackEvents = "initiated ringing answered completed"

// SpokenError returns a terminal document that speaks a message and hangs
// up. Used for every call-path failure: callers hear an explanation
// rather than silence or a dropped call.
func SpokenError(message string) Response {
	return Response{Verbs: []any{
		Say{Text: message},
		Hangup{},
	}}
}

// Bridge returns a document that dials the given SIP URI with a bounded
// ring timeout. statusCallback may be empty when no public base URL is
// configured.
func Bridge(sipURI string, timeoutSecs int, statusCallback string) Response {
	sip := &Sip{URI: sipURI}
	if statusCallback != "" {
		sip.StatusCallback = statusCallback
		sip.StatusCallbackEvent = statusCallbackEvents
	}
	return Response{Verbs: []any{
		Dial{Timeout: timeoutSecs, AnswerOnBridge: true, Sip: sip},
	}}
}

// Render serializes a response document with the XML header.
func Render(r Response) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("encoding twiml: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("flushing twiml: %w", err)
	}
	return buf.String(), nil
}
