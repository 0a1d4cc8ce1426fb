// Package assistant turns free-form user input into relay commands and
// renders received messages for speech, using a text completion backend.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrIncompleteReply = errors.New("could not extract recipient and message")
)

// Completer takes a prompt and returns a single text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Listener captures one utterance of user input.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker plays text back to the user and returns when playback is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Command struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// ParseError carries the raw completion that failed to decode.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse completion: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

const extractPrompt = `Extract the recipient name and the message from this command:
"%s"

Respond ONLY in this exact JSON format:
{"recipient": "name", "message": "the actual message"}

Example: If input is "Tell Jone to come at 4 pm today."
Output: {"recipient": "Jone", "message": "come at 4 pm today."}`

const speechPrompt = `Format this message naturally for spoken output:
Sender: %s
Message: %s

Create a natural spoken format like: "%s tells %s"
Respond ONLY with the formatted message, nothing else.`

func ExtractPrompt(input string) string {
	return fmt.Sprintf(extractPrompt, input)
}

func SpeechPrompt(sender, message string) string {
	return fmt.Sprintf(speechPrompt, sender, message, sender, message)
}

// ExtractCommand asks c for the recipient and message contained in input.
func ExtractCommand(ctx context.Context, c Completer, input string) (Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{}, ErrEmptyInput
	}

	reply, err := c.Complete(ctx, ExtractPrompt(input))
	if err != nil {
		return Command{}, fmt.Errorf("extract command: %w", err)
	}
	return ParseCommand(reply)
}

// ParseCommand decodes a completion reply, tolerating markdown code fences.
func ParseCommand(reply string) (Command, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(StripFences(reply)), &cmd); err != nil {
		return Command{}, &ParseError{Raw: reply, Err: err}
	}
	cmd.Recipient = strings.TrimSpace(cmd.Recipient)
	cmd.Message = strings.TrimSpace(cmd.Message)
	if cmd.Recipient == "" || cmd.Message == "" {
		return Command{}, ErrIncompleteReply
	}
	return cmd, nil
}

func StripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FormatForSpeech returns a spoken rendering of a received message. When the
// completer fails or returns nothing, the plain "<sender> tells <message>"
// form is used and the completer error is returned alongside it.
func FormatForSpeech(ctx context.Context, c Completer, sender, message string) (string, error) {
	fallback := fmt.Sprintf("%s tells %s", sender, message)
	if c == nil {
		return fallback, nil
	}

	reply, err := c.Complete(ctx, SpeechPrompt(sender, message))
	if err != nil {
		return fallback, fmt.Errorf("format for speech: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallback, nil
	}
	return reply, nil
}
